package imagine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPoint = "imagine/point/v1"
	DomainScene = "imagine/scene/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PointHash computes the content-addressed identity of a point. Stable
// across processes because it hashes the canonical encoding.
func PointHash(p Point) (string, error) {
	canonical, err := MarshalCanonical(p.Object())
	if err != nil {
		return "", fmt.Errorf("PointHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPoint, canonical), nil
}

// SceneHash computes the content-addressed identity of a chain head. The
// parent's hash is folded in, so equal hashes mean structurally equal chains
// all the way to the root. The nil head (no chain) hashes to "".
func SceneHash(s *Scene) (string, error) {
	if s == nil {
		return "", nil
	}
	parentHash, err := SceneHash(s.parent)
	if err != nil {
		return "", err
	}
	obj := Object{
		"parent": String(parentHash),
		"value":  s.value,
	}
	if s.guard != nil {
		obj["guard"] = s.guard.Object()
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SceneHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainScene, canonical), nil
}

// MustPointHash is like PointHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPointHash(p Point) string {
	hash, err := PointHash(p)
	if err != nil {
		panic(err)
	}
	return hash
}

// MustSceneHash is like SceneHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSceneHash(s *Scene) string {
	hash, err := SceneHash(s)
	if err != nil {
		panic(err)
	}
	return hash
}
