package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns n random bytes hex encoded
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// RandomTxHash fabricates a 0x-prefixed 32-byte hash
func RandomTxHash() string {
	return "0x" + RandomHex(32)
}
