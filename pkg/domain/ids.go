// Package domain holds the typed identifiers shared across the engine.
//
// Every aggregate gets its own UUID-backed type so a dispute ID can never be
// passed where a policy ID is expected. Construct IDs from external input via
// the Parse* functions; direct casting bypasses validation and is reserved for
// internal code that already holds a valid UUID.
package domain

import (
	"github.com/google/uuid"

	dErrors "peershield/pkg/domain-errors"
)

// PartyID identifies an acting party (claim holder, respondent, operator).
// The engine treats it as an opaque comparable key supplied by the identity
// collaborator; it never inspects the value's structure.
type PartyID uuid.UUID

// DisputeID identifies a dispute aggregate.
type DisputeID uuid.UUID

// PolicyID identifies the insurance policy a dispute originates from.
type PolicyID uuid.UUID

// ClaimID identifies the contested claim.
type ClaimID uuid.UUID

// ArbitratorID identifies a registered arbitrator.
type ArbitratorID uuid.UUID

// RegistrationID identifies a sandbox enrollment record.
type RegistrationID uuid.UUID

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

// ParsePartyID constructs a PartyID from external input.
func ParsePartyID(s string) (PartyID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return PartyID{}, err
	}
	return PartyID(parsed), nil
}

// ParseDisputeID constructs a DisputeID from external input.
func ParseDisputeID(s string) (DisputeID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return DisputeID{}, err
	}
	return DisputeID(parsed), nil
}

// ParsePolicyID constructs a PolicyID from external input.
func ParsePolicyID(s string) (PolicyID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return PolicyID{}, err
	}
	return PolicyID(parsed), nil
}

// ParseClaimID constructs a ClaimID from external input.
func ParseClaimID(s string) (ClaimID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return ClaimID{}, err
	}
	return ClaimID(parsed), nil
}

// ParseArbitratorID constructs an ArbitratorID from external input.
func ParseArbitratorID(s string) (ArbitratorID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return ArbitratorID{}, err
	}
	return ArbitratorID(parsed), nil
}

// ParseRegistrationID constructs a RegistrationID from external input.
func ParseRegistrationID(s string) (RegistrationID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return RegistrationID{}, err
	}
	return RegistrationID(parsed), nil
}

func (id PartyID) String() string        { return uuid.UUID(id).String() }
func (id DisputeID) String() string      { return uuid.UUID(id).String() }
func (id PolicyID) String() string       { return uuid.UUID(id).String() }
func (id ClaimID) String() string        { return uuid.UUID(id).String() }
func (id ArbitratorID) String() string   { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }

func (id PartyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DisputeID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ArbitratorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id PartyID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id DisputeID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id PolicyID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ClaimID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ArbitratorID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id RegistrationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PartyID) UnmarshalText(b []byte) error {
	parsed, err := ParsePartyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DisputeID) UnmarshalText(b []byte) error {
	parsed, err := ParseDisputeID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *PolicyID) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ClaimID) UnmarshalText(b []byte) error {
	parsed, err := ParseClaimID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ArbitratorID) UnmarshalText(b []byte) error {
	parsed, err := ParseArbitratorID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *RegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParseRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
