package sale

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Status is the mutable runtime state of a sale.
type Status struct {
	StartTime         uint64 `json:"startTime"`
	PrefundEndTime    uint64 `json:"prefundEndTime,omitempty"`
	AllocationEndTime uint64 `json:"allocationEndTime,omitempty"`
	// EndTime is zero for pre-liquid sales until EndSale is called.
	EndTime       uint64 `json:"endTime"`
	RefundEndTime uint64 `json:"refundEndTime"`
	HasEnded      bool   `json:"hasEnded"`

	TotalCapitalInvested  *uint256.Int `json:"totalCapitalInvested"`
	TotalCapitalRaised    *uint256.Int `json:"totalCapitalRaised"`
	TotalCapitalWithdrawn *uint256.Int `json:"totalCapitalWithdrawn"`
	TotalTokensAllocated  *uint256.Int `json:"totalTokensAllocated"`

	IsCanceled             bool `json:"isCanceled"`
	IsPaused               bool `json:"isPaused"`
	TokensSupplied         bool `json:"tokensSupplied"`
	CapitalWithdrawn       bool `json:"capitalWithdrawn"`
	CapitalRaisedPublished bool `json:"capitalRaisedPublished"`

	ClaimTokensMerkleRoot     common.Hash `json:"claimTokensMerkleRoot"`
	AcceptedCapitalMerkleRoot common.Hash `json:"acceptedCapitalMerkleRoot"`

	// AskToken starts as the configured ask token and may be set once by
	// result publication when none was configured.
	AskToken common.Address `json:"askToken"`

	// Sealed-bid auctions only.
	PublicationLocked bool         `json:"publicationLocked"`
	PrivateKey        *uint256.Int `json:"privateKey,omitempty"`
}

func newStatus() Status {
	return Status{
		TotalCapitalInvested:  new(uint256.Int),
		TotalCapitalRaised:    new(uint256.Int),
		TotalCapitalWithdrawn: new(uint256.Int),
		TotalTokensAllocated:  new(uint256.Int),
	}
}

func (s Status) clone() Status {
	out := s
	out.TotalCapitalInvested = cloneInt(s.TotalCapitalInvested)
	out.TotalCapitalRaised = cloneInt(s.TotalCapitalRaised)
	out.TotalCapitalWithdrawn = cloneInt(s.TotalCapitalWithdrawn)
	out.TotalTokensAllocated = cloneInt(s.TotalTokensAllocated)
	if s.PrivateKey != nil {
		out.PrivateKey = s.PrivateKey.Clone()
	}
	return out
}

// ResultsPublished reports whether the token allocation has been published.
func (s Status) ResultsPublished() bool {
	return !s.TotalTokensAllocated.IsZero()
}

func cloneInt(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

// Phase is the conceptual lifecycle state derived from the status flags
// and timestamps.
type Phase uint8

const (
	PhaseActive Phase = iota
	PhaseEnded
	PhaseRefundOver
	PhasePublicationLocked
	PhaseResultsPublished
	PhaseCanceled
)

// String returns the phase name.
func (p Phase) String() string {
	return [...]string{"active", "ended", "refund-over", "publication-locked", "results-published", "canceled"}[p]
}
