// Package ledger is the boundary to the on-chain settlement program. The
// engine decides what should happen to funds and emits an instruction
// request; executing it is someone else's job.
package ledger

import (
	"context"
	"time"

	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

// SettlementRequest instructs the ledger to move a resolved dispute's awarded
// amount to the prevailing party.
type SettlementRequest struct {
	DisputeID   id.DisputeID `json:"dispute_id"`
	Payee       id.PartyID   `json:"payee"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	RequestedAt time.Time    `json:"requested_at"`
}

func (r SettlementRequest) Validate() error {
	if r.DisputeID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "settlement requires a dispute id")
	}
	if r.Payee.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "settlement requires a payee")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "settlement amount must be positive")
	}
	if r.Currency == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "settlement requires a currency")
	}
	return nil
}

// Gateway delivers settlement requests to the execution layer.
type Gateway interface {
	RequestSettlement(ctx context.Context, req SettlementRequest) error
	Close()
}
