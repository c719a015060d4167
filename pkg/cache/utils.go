package cache

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// GenerateKey joins parts with ':'.
func GenerateKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// HashKey generates MD5 hash of a key.
func HashKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
