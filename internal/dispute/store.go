package dispute

import (
	"context"

	id "peershield/pkg/domain"
)

// Store persists disputes. Execute is the transition primitive: it loads the
// dispute, runs validate, and commits mutate only if validation passed, all
// under the dispute's exclusive section (mutex or row lock). Concurrent
// transitions on the same dispute serialize; a commit-time version mismatch
// surfaces as sentinel.ErrConflict.
type Store interface {
	Save(ctx context.Context, d *Dispute) error
	FindByID(ctx context.Context, disputeID id.DisputeID) (*Dispute, error)
	ListByParty(ctx context.Context, partyID id.PartyID) ([]*Dispute, error)
	All(ctx context.Context) ([]*Dispute, error)
	Execute(ctx context.Context, disputeID id.DisputeID, validate func(*Dispute) error, mutate func(*Dispute)) (*Dispute, error)
}
