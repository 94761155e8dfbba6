// Package fileutil provides the digest helpers shared by the object store
// and catalogue verification code.
package fileutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA1Hex returns the lowercase hex SHA-1 digest of data. IMSLP publishes
// SHA-1 digests for its hosted files, so reference-PDF matching uses it.
func SHA1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
