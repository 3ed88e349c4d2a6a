package licensefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"licensebridge/internal/config"
	apierrors "licensebridge/internal/errors"
)

// Issue writes dir/license.lic for deviceCode. dir must already exist.
func (c *Codec) Issue(deviceCode, dir string) (Record, string, error) {
	deviceCode = strings.TrimSpace(deviceCode)
	if deviceCode == "" {
		return Record{}, "", apierrors.NewAppValidationError("device code is empty")
	}
	if !config.DirExists(dir) {
		return Record{}, "", apierrors.NewAppValidationError(
			fmt.Sprintf("path is not a valid directory: %s", dir))
	}

	rec := c.NewRecord(deviceCode)
	path := filepath.Join(dir, config.LicenseFileName)
	if err := c.WriteLicense(path, rec); err != nil {
		return Record{}, "", err
	}
	return rec, path, nil
}

// WriteLicense seals rec into path, replacing any previous file.
func (c *Codec) WriteLicense(path string, rec Record) error {
	sealed, err := c.Seal(rec)
	if err != nil {
		return apierrors.NewStorageError("encrypt license", err)
	}
	if err := os.WriteFile(path, []byte(sealed), 0o644); err != nil {
		return apierrors.NewStorageError("write license file", err).WithContext("path", path)
	}
	return nil
}

// ReadLicense opens the license at path.
func (c *Codec) ReadLicense(path string) (Record, error) {
	raw, err := readFile(path, "license file")
	if err != nil {
		return Record{}, err
	}
	rec, err := c.Open(string(raw))
	if err != nil {
		return Record{}, apierrors.NewAppError(apierrors.ErrTypeValidation, "license file is malformed", err).
			WithContext("path", path)
	}
	return rec, nil
}

// Verify checks the license at licensePath against the code stored in
// codePath. Unreadable or malformed inputs are errors; a well-formed pair
// that does not match yields a fail or partial Verification.
func (c *Codec) Verify(licensePath, codePath string) (Verification, error) {
	code, err := ReadDeviceCode(codePath)
	if err != nil {
		return Verification{}, err
	}
	rec, err := c.ReadLicense(licensePath)
	if err != nil {
		return Verification{}, err
	}
	return Check(rec, code), nil
}

// Check compares a decoded record with a device code.
func Check(rec Record, deviceCode string) Verification {
	switch {
	case rec.DeviceCode != deviceCode:
		return Verification{
			Status: StatusFail,
			Record: rec,
			Reason: "device code does not match the license",
		}
	case !rec.Valid():
		return Verification{
			Status: StatusPartial,
			Record: rec,
			Reason: "device code matches but the license checksum is invalid",
		}
	default:
		return Verification{Status: StatusPass, Record: rec}
	}
}

// ReadDeviceCode returns the trimmed code stored in a device-code file.
func ReadDeviceCode(path string) (string, error) {
	raw, err := readFile(path, "device code file")
	if err != nil {
		return "", err
	}
	code := strings.TrimSpace(string(raw))
	if code == "" {
		return "", apierrors.NewAppValidationError("device code file is empty").WithContext("path", path)
	}
	return code, nil
}

// WriteDeviceCode stores the raw code bytes at path.
func WriteDeviceCode(path, code string) error {
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return apierrors.NewStorageError("write device code file", err).WithContext("path", path)
	}
	return nil
}

func readFile(path, what string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apierrors.NewAppValidationError(what + " path is empty")
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, apierrors.NewNotFoundError(fmt.Sprintf("%s %s", what, path))
	case err != nil:
		return nil, apierrors.NewStorageError("read "+what, err).WithContext("path", path)
	}
	return raw, nil
}
