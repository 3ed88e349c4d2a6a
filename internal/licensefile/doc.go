// Package licensefile reads and writes license.lic and device_code.bin.
//
// A license is a JSON Record sealed with AES-256-GCM and stored as
//
//	base64(ciphertext) ":" base64(nonce)
//
// The Record checksum is hex(SHA-256(device_code + serial_number + issued_at)),
// so a license whose metadata was edited but re-encrypted with the same key
// still fails the checksum.
package licensefile
