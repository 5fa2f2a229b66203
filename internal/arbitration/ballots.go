package arbitration

import (
	"math"
	"sync"
	"time"

	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// ballot is the voting state for a single dispute.
type ballot struct {
	assigned  map[id.ArbitratorID]struct{}
	quorum    int
	threshold float64
	votes     []Vote
	finalized bool
}

// Ballots tallies arbitrator votes per dispute and finalizes an Outcome when
// the consensus threshold is reached. Each dispute's ballot is independent;
// the single mutex is uncontended in practice because voting is rare compared
// to reads elsewhere.
type Ballots struct {
	mu      sync.Mutex
	ballots map[id.DisputeID]*ballot
}

func NewBallots() *Ballots {
	return &Ballots{ballots: make(map[id.DisputeID]*ballot)}
}

// Open starts a voting round for a dispute with the assigned arbitrator set.
// The consensus requirement is ceil(threshold * len(assigned)) concurring
// votes. Reopening a dispute (after an appeal) discards any previous round.
func (b *Ballots) Open(disputeID id.DisputeID, assigned []id.ArbitratorID, threshold float64) error {
	if len(assigned) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot open voting round with no arbitrators")
	}
	if threshold <= 0 || threshold > 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "consensus threshold must be in (0, 1]")
	}

	set := make(map[id.ArbitratorID]struct{}, len(assigned))
	for _, arbID := range assigned {
		set[arbID] = struct{}{}
	}

	// Fractional thresholds like 2/3 are not exactly representable; shave the
	// float error so a 2/3 threshold over three seats needs two votes, not three.
	quorum := int(math.Ceil(threshold*float64(len(assigned)) - 1e-9))
	if quorum < 1 {
		quorum = 1
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.ballots[disputeID] = &ballot{
		assigned:  set,
		quorum:    quorum,
		threshold: threshold,
	}
	return nil
}

// Record registers one arbitrator's vote. When the number of concurring
// decisions reaches the quorum the round finalizes and the Outcome is
// returned; until then the returned Outcome is nil.
//
// Dissenting arbitrators' votes are retained in the outcome's signature list
// but do not block finalization once the threshold is met.
func (b *Ballots) Record(disputeID id.DisputeID, vote Vote) (*Outcome, error) {
	if !vote.Decision.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown decision %q", vote.Decision)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	bl, ok := b.ballots[disputeID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "no open voting round for dispute")
	}
	if bl.finalized {
		return nil, dErrors.New(dErrors.CodeStateConflict, "voting round already finalized")
	}
	if _, assigned := bl.assigned[vote.ArbitratorID]; !assigned {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "arbitrator not assigned to this dispute")
	}
	for _, existing := range bl.votes {
		if existing.ArbitratorID == vote.ArbitratorID {
			return nil, dErrors.New(dErrors.CodeConflict, "arbitrator has already voted")
		}
	}

	bl.votes = append(bl.votes, vote)

	counts := make(map[Decision]int)
	for _, v := range bl.votes {
		counts[v.Decision]++
	}
	if counts[vote.Decision] < bl.quorum {
		return nil, nil
	}

	bl.finalized = true
	return finalize(bl, vote.Decision, vote.CastAt), nil
}

// finalize builds the Outcome for the winning decision. The awarded amount
// and reason come from the first recorded vote carrying the winning verdict;
// every voter, concurring or dissenting, appears in the signature list.
func finalize(bl *ballot, winning Decision, at time.Time) *Outcome {
	out := &Outcome{Decision: winning, FinalizedAt: at}
	found := false
	for _, v := range bl.votes {
		out.Signatures = append(out.Signatures, v.ArbitratorID)
		if v.Decision == winning && !found {
			out.Amount = v.Amount
			out.Reason = v.Reason
			found = true
		}
	}
	return out
}

// Close discards the voting round for a dispute, if any. Called when a
// dispute resolves or is cancelled.
func (b *Ballots) Close(disputeID id.DisputeID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.ballots, disputeID)
}
