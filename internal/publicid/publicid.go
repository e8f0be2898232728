// Package publicid converts internal record keys into the compact public
// identifiers handed out to clients, and back.
//
// Internal keys are UUIDs generated by the storage engine. Their 16 raw bytes
// are encoded as base32 (RFC 4648) without padding and lowercased, which
// yields a 26 character, URL-safe string.
package publicid

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the length of every encoded public identifier.
const Length = 26

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Encode returns the public identifier for the internal key id.
func Encode(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid internal id %q: %w", id, err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// Decode returns the internal key encoded in publicID. Only the exact form
// produced by Encode is accepted, so every key has a single public id.
func Decode(publicID string) (string, error) {
	if len(publicID) != Length {
		return "", fmt.Errorf("invalid public id %q: length %d", publicID, len(publicID))
	}
	raw, err := encoding.DecodeString(strings.ToUpper(publicID))
	if err != nil {
		return "", fmt.Errorf("invalid public id %q: %w", publicID, err)
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return "", fmt.Errorf("invalid public id %q: %w", publicID, err)
	}
	// base32 ignores the trailing bits of the last character and the
	// input was upper-cased above.
	if canonical := strings.ToLower(encoding.EncodeToString(u[:])); canonical != publicID {
		return "", fmt.Errorf("invalid public id %q: not canonical", publicID)
	}
	return u.String(), nil
}
