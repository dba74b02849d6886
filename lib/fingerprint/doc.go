// Package fingerprint derives stable request fingerprints for idempotency checks.
//
// Two requests carrying the same idempotency token must be recognized as "the same
// request" even when clients serialize the payload differently, and as different requests
// when any value differs. The fingerprint is therefore the SHA-256 of a canonical JSON
// encoding (sorted keys, no whitespace, NFC strings, normalized numbers) with a domain
// prefix, see Canonicalize and Of.
//
// Non-JSON payloads are fingerprinted byte for byte.
package fingerprint
