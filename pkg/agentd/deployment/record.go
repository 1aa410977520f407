package deployment

import (
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingInstance   = errors.New("instance hash not set")
	ErrMissingAddress    = errors.New("instance address not set")
)

// Record is the persisted description of one agent deployment.
// Handle refers to the stored document and is never part of its content.
type Record struct {
	Handle         string         `json:"-"`
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Owner          string         `json:"owner"`
	WalletAddress  string         `json:"wallet_address"`
	RequiredTokens math.LegacyDec `json:"required_tokens"`
	AgentHash      string         `json:"agent_hash"`
	InstanceHash   string         `json:"instance_hash,omitempty"`
	InstanceIP     string         `json:"instance_ip,omitempty"`
	Status         Status         `json:"status"`
	LastUpdate     int64          `json:"last_update"`
	Tags           []string       `json:"tags"`
	LastError      string         `json:"last_error,omitempty"`
}

// New returns a record for a workload that has not been provisioned yet.
func New(id, name, owner, walletAddress, agentHash string, requiredTokens math.LegacyDec) Record {
	return Record{
		ID:             id,
		Name:           name,
		Owner:          owner,
		WalletAddress:  walletAddress,
		RequiredTokens: requiredTokens,
		AgentHash:      agentHash,
		Status:         StatusPendingFund,
		LastUpdate:     time.Now().Unix(),
		Tags:           []string{id, owner},
	}
}

// Copy returns a record that shares no mutable state with r.
func (r Record) Copy() Record {
	c := r
	if r.Tags != nil {
		c.Tags = make([]string, len(r.Tags))
		copy(c.Tags, r.Tags)
	}
	return c
}

// Validate checks the invariants that tie instance fields to the status.
func (r Record) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown deployment status '%s'", r.Status)
	}
	if r.Status.AtLeast(StatusPendingSwap) && len(r.InstanceHash) == 0 {
		return fmt.Errorf("%w: status %s", ErrMissingInstance, r.Status)
	}
	if r.Status.AtLeast(StatusPendingDeploy) && len(r.InstanceIP) == 0 {
		return fmt.Errorf("%w: status %s", ErrMissingAddress, r.Status)
	}
	return nil
}

// Advance returns a copy of r moved to the successor status, with the given
// changes applied first. The previous failure message is cleared.
func (r Record) Advance(now time.Time, change func(*Record)) (Record, error) {
	next, ok := r.Status.Next()
	if !ok {
		return r, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, r.Status)
	}

	advanced := r.Copy()
	if change != nil {
		change(&advanced)
	}
	advanced.Status = next
	advanced.LastUpdate = now.Unix()
	advanced.LastError = ""

	if err := advanced.Validate(); err != nil {
		return r, err
	}

	return advanced, nil
}
