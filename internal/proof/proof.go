// Package proof fabricates the placeholder values shown as "encryption" and
// "zero-knowledge proofs". Nothing here has any cryptographic meaning.
package proof

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strconv"
	"time"

	"cryptovault/internal/utils"
)

// PlaceholderHash derives the value stored in Dataset.ZKProofHash
func PlaceholderHash(fileHash string, at time.Time) string {
	sum := sha256.Sum256([]byte(fileHash + strconv.FormatInt(at.UnixMilli(), 10)))
	return hex.EncodeToString(sum[:])
}

// Verification is the canned answer of the verify endpoint
type Verification struct {
	DatasetID        string  `json:"datasetId"`
	ProofHash        string  `json:"proofHash"`
	Verified         bool    `json:"verified"`
	VerificationTime float64 `json:"verificationTime"` // Milliseconds, random
	ZKProtocol       string  `json:"zkProtocol"`
	Timestamp        string  `json:"timestamp"`
}

// Verify always reports success
func Verify(datasetID string, now time.Time) Verification {
	return Verification{
		DatasetID:        datasetID,
		ProofHash:        "0x" + utils.RandomHex(16),
		Verified:         true,
		VerificationTime: rand.Float64() * 1000,
		ZKProtocol:       "zk-SNARK",
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
}

// Encryption is the canned answer of the encrypt endpoint
type Encryption struct {
	DatasetID        string `json:"datasetId"`
	EncryptedHash    string `json:"encryptedHash"`
	EncryptionMethod string `json:"encryptionMethod"`
	StorageProvider  string `json:"storageProvider"`
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
}

// Encrypt pretends to encrypt a dataset with the given key
func Encrypt(datasetID string, now time.Time) Encryption {
	return Encryption{
		DatasetID:        datasetID,
		EncryptedHash:    "0x" + utils.RandomHex(16),
		EncryptionMethod: "AES-256",
		StorageProvider:  "Walrus",
		Status:           "encrypted",
		Timestamp:        now.UTC().Format(time.RFC3339),
	}
}

// DecryptionKey fabricates the key handed to a buyer
func DecryptionKey(now time.Time) string {
	return "key_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + utils.RandomHex(8)
}
