package licensefile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Record is the plaintext content of a license file.
type Record struct {
	DeviceCode   string `json:"device_code"`
	IssuedAt     string `json:"issued_at"`
	SerialNumber string `json:"serial_number"`
	Checksum     string `json:"checksum"`
}

// Checksum hashes the identifying fields of a record. The timestamp is
// hashed in its display form ("2025-05-01 10:20:30.123 UTC"), not as
// stored, so licenses from other issuers of the format still verify.
// An unparseable timestamp is hashed verbatim.
func Checksum(deviceCode, serialNumber, issuedAt string) string {
	stamp := issuedAt
	if t, err := time.Parse(time.RFC3339Nano, issuedAt); err == nil {
		stamp = DisplayTime(t)
	}
	sum := sha256.Sum256([]byte(deviceCode + serialNumber + stamp))
	return hex.EncodeToString(sum[:])
}

// FormatIssuedAt renders t for the issued_at field.
func FormatIssuedAt(t time.Time) string {
	t = t.UTC()
	return t.Format("2006-01-02T15:04:05") + fraction(t.Nanosecond()) + "Z"
}

// DisplayTime renders t in UTC the way the checksum covers it.
func DisplayTime(t time.Time) string {
	t = t.UTC()
	return t.Format("2006-01-02 15:04:05") + fraction(t.Nanosecond()) + " UTC"
}

// fraction prints sub-second precision in groups of three digits, or
// nothing for whole seconds.
func fraction(ns int) string {
	switch {
	case ns == 0:
		return ""
	case ns%int(time.Millisecond) == 0:
		return fmt.Sprintf(".%03d", ns/int(time.Millisecond))
	case ns%int(time.Microsecond) == 0:
		return fmt.Sprintf(".%06d", ns/int(time.Microsecond))
	default:
		return fmt.Sprintf(".%09d", ns)
	}
}

// Valid reports whether the stored checksum matches the fields.
func (r Record) Valid() bool {
	return r.Checksum == Checksum(r.DeviceCode, r.SerialNumber, r.IssuedAt)
}

// IssuedTime parses IssuedAt; the zero time is returned for foreign formats.
func (r Record) IssuedTime() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.IssuedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Status is the outcome of checking a license against a device code.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusPartial Status = "partial"
)

// Verification is a well-formed check result. A non-pass status is an
// expected outcome, not an error.
type Verification struct {
	Status Status
	Record Record
	// Reason explains a non-pass status.
	Reason string
}

// Passed reports whether the license matched.
func (v Verification) Passed() bool {
	return v.Status == StatusPass
}
