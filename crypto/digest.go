package crypto

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"
)

// DigestAlgorithm names a fixed-length 32-byte hash function.
type DigestAlgorithm string

const (
	DigestSHA256    DigestAlgorithm = "sha256"
	DigestBlake3    DigestAlgorithm = "blake3"
	DigestKeccak256 DigestAlgorithm = "keccak256"
)

// ParseDigestAlgorithm normalises a configured algorithm name. An empty value
// selects sha256.
func ParseDigestAlgorithm(name string) (DigestAlgorithm, error) {
	switch alg := DigestAlgorithm(strings.ToLower(strings.TrimSpace(name))); alg {
	case "":
		return DigestSHA256, nil
	case DigestSHA256, DigestBlake3, DigestKeccak256:
		return alg, nil
	default:
		return "", fmt.Errorf("crypto: unsupported digest algorithm %q", name)
	}
}

// Digest hashes payload with the selected algorithm.
func Digest(alg DigestAlgorithm, payload []byte) ([32]byte, error) {
	switch alg {
	case DigestSHA256, "":
		return sha256.Sum256(payload), nil
	case DigestBlake3:
		return blake3.Sum256(payload), nil
	case DigestKeccak256:
		return crypto.Keccak256Hash(payload), nil
	default:
		return [32]byte{}, fmt.Errorf("crypto: unsupported digest algorithm %q", alg)
	}
}
