// Package evidence stores dispute evidence payloads off to the side and hands
// the lifecycle engine a content hash. Disputes reference evidence by hash
// only; the payload never enters the dispute record.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// Store is the boundary to wherever evidence payloads live. Implementations
// must be content-addressed: the returned hash is the SHA-256 hex digest of
// the payload, so the same payload always yields the same hash.
type Store interface {
	Store(ctx context.Context, ownerID id.PartyID, payload []byte) (string, error)
	Retrieve(ctx context.Context, hash string) ([]byte, error)
}

// Hash returns the hex digest used to address a payload.
func Hash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func validatePayload(payload []byte) error {
	if len(payload) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "evidence payload is empty")
	}
	return nil
}
