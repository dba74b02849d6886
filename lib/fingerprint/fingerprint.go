package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for request fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainJSON = "idemkv/fingerprint/v1"
	DomainRaw  = "idemkv/fingerprint/raw/v1"
)

// Of returns the fingerprint of a request payload as lowercase hex SHA-256.
// JSON payloads are canonicalized first, so key order and whitespace do not matter.
// Payloads that are not valid JSON are hashed byte for byte under a separate domain.
func Of(body []byte) string {
	canonical, err := Canonicalize(body)
	if err != nil {
		return hashWithDomain(DomainRaw, body)
	}
	return hashWithDomain(DomainJSON, canonical)
}

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
