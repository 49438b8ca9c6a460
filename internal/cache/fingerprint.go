package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Category namespaces fingerprints so identical payload bytes in
// different categories never collide on the same key.
type Category string

const (
	CategoryTranscription Category = "transcription"
	CategoryRewrite       Category = "rewrite"
)

// Fingerprint returns the cache key for payload within category:
// "<category>:<sha256-hex>". The same bytes always produce the same
// key, so repeated requests dedupe to a single entry.
func Fingerprint(category Category, payload []byte) string {
	sum := sha256.Sum256(payload)
	return string(category) + ":" + hex.EncodeToString(sum[:])
}

// TranscriptionFingerprint identifies an audio upload by its raw bytes.
func TranscriptionFingerprint(audio []byte) string {
	return Fingerprint(CategoryTranscription, audio)
}

// RewriteFingerprint identifies a rewrite by the (preset, language, text)
// triple. Fields are NUL-separated before hashing so no combination of
// values can produce the identity of another.
func RewriteFingerprint(text, presetID, language string) string {
	payload := make([]byte, 0, len(presetID)+len(language)+len(text)+2)
	payload = append(payload, presetID...)
	payload = append(payload, 0)
	payload = append(payload, language...)
	payload = append(payload, 0)
	payload = append(payload, text...)
	return Fingerprint(CategoryRewrite, payload)
}

// CategoryOf extracts the category prefix from a fingerprint key.
func CategoryOf(fingerprint string) Category {
	for i := 0; i < len(fingerprint); i++ {
		if fingerprint[i] == ':' {
			return Category(fingerprint[:i])
		}
	}
	return ""
}
