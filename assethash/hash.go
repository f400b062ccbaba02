// Package assethash defines the content hash identity used throughout the
// asset server: a SHA-256 digest, canonically represented as 64 lowercase
// hex characters. Internally it is backed by the same digest type the
// teacher's blob store uses, constrained to a single algorithm and
// stripped of the "sha256:" algorithm prefix to match the wire/on-disk
// representation spec.md calls for.
package assethash

import (
	"crypto/sha256"
	"fmt"
	"regexp"

	digest "github.com/opencontainers/go-digest"
	multihash "github.com/multiformats/go-multihash"
)

// Hash is a 32-byte SHA-256 digest rendered as 64 lowercase hex characters.
type Hash string

// hexPattern matches exactly what spec.md's Hash representation requires.
var hexPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Zero is the empty, invalid Hash.
const Zero Hash = ""

// Valid reports whether h is syntactically a well-formed hash.
func (h Hash) Valid() bool {
	return hexPattern.MatchString(string(h))
}

func (h Hash) String() string { return string(h) }

// Parse validates and returns s as a Hash.
func Parse(s string) (Hash, error) {
	h := Hash(s)
	if !h.Valid() {
		return Zero, fmt.Errorf("assethash: invalid hash %q", s)
	}
	return h, nil
}

// FromBytes computes the content hash of p, the same way BlobStore.put
// derives the name a blob is stored under.
func FromBytes(p []byte) Hash {
	d := digest.Canonical.FromBytes(p)
	return Hash(d.Encoded())
}

// VerifyUpload re-derives the hash of untrusted upload bytes and additionally
// round-trips it through multihash's SHA2-256 encoding as a defense against a
// malformed or truncated digest silently passing the simpler hex check —
// the one concrete use this server has for the corpus's multiformats stack.
func VerifyUpload(p []byte) (Hash, error) {
	sum := sha256.Sum256(p)
	mh, err := multihash.Encode(sum[:], multihash.SHA2_256)
	if err != nil {
		return Zero, fmt.Errorf("assethash: multihash encode: %w", err)
	}
	decoded, err := multihash.Decode(mh)
	if err != nil {
		return Zero, fmt.Errorf("assethash: multihash decode: %w", err)
	}
	if len(decoded.Digest) != sha256.Size {
		return Zero, fmt.Errorf("assethash: unexpected digest length %d", len(decoded.Digest))
	}

	h := FromBytes(p)
	if !h.Valid() {
		return Zero, fmt.Errorf("assethash: computed hash failed validation")
	}
	return h, nil
}
