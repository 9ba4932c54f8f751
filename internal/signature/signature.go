// Package signature builds HMAC request signatures and signed lookup URLs for
// the digit-eyes GTIN API.
//
// The signature of a lookup is the standard base64 encoding of
// HMAC(authKey, barcode). The API requires SHA-1; the other algorithms are
// accepted through the same entry point for APIs signed the same way.
package signature

import (
	"crypto/hmac"
	"crypto/md5"  //nolint:gosec // offered for compatibility with legacy signers
	"crypto/sha1" //nolint:gosec // required by the digit-eyes protocol
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"hash"
	"strings"

	"github.com/go-faster/errors"
)

// Algorithm identifies the hash function used by the HMAC.
type Algorithm string

// Supported HMAC hash functions.
const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA224 Algorithm = "sha224"
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
)

// DefaultAlgorithm is the algorithm the digit-eyes API verifies.
const DefaultAlgorithm = SHA1

// ErrUnsupportedAlgorithm is returned for an Algorithm not listed above.
var ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")

// Algorithms lists every supported algorithm.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA1, SHA224, SHA256, SHA384, SHA512}
}

// ParseAlgorithm maps a case-insensitive name ("SHA-1", "sha1", "sha256") to
// an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", ""))
	if a.hash() == nil {
		return "", errors.Wrapf(ErrUnsupportedAlgorithm, "parse %q", name)
	}
	return a, nil
}

func (a Algorithm) hash() func() hash.Hash {
	switch a {
	case MD5:
		return md5.New
	case SHA1:
		return sha1.New
	case SHA224:
		return sha256.New224
	case SHA256:
		return sha256.New
	case SHA384:
		return sha512.New384
	case SHA512:
		return sha512.New
	default:
		return nil
	}
}

// Size returns the digest length in bytes, or 0 for an unsupported algorithm.
func (a Algorithm) Size() int {
	switch a {
	case MD5:
		return md5.Size
	case SHA1:
		return sha1.Size
	case SHA224:
		return sha256.Size224
	case SHA256:
		return sha256.Size
	case SHA384:
		return sha512.Size384
	case SHA512:
		return sha512.Size
	default:
		return 0
	}
}

func (a Algorithm) String() string { return string(a) }

// Sum returns the raw HMAC digest of message under key.
func Sum(message, key string, alg Algorithm) ([]byte, error) {
	h := alg.hash()
	if h == nil {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", string(alg))
	}
	// hmac handles keys shorter or longer than the block size itself.
	mac := hmac.New(h, []byte(key))
	mac.Write([]byte(message))
	return mac.Sum(nil), nil
}

// Compute returns the standard base64 encoding of HMAC(key, message).
// Empty message and empty key are valid inputs.
func Compute(message, key string, alg Algorithm) (string, error) {
	sum, err := Sum(message, key, alg)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// Verify reports whether signature is the base64 HMAC of message under key.
// The comparison is constant-time.
func Verify(message, key, signature string, alg Algorithm) bool {
	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	expected, err := Sum(message, key, alg)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, expected)
}
