package artifact

import (
	"context"
	"errors"

	"github.com/nais/agentdeploy/pkg/agentd/marketplace"
)

var ErrNotFound = errors.New("artifact not found")

// Descriptor is the published description of an agent.
type Descriptor struct {
	AgentHash      string                `json:"-"`
	SourceCodeHash string                `json:"source_code_hash"`
	Creator        string                `json:"creator"`
	Resources      marketplace.Resources `json:"resources"`
}

type Store interface {
	// Resolve looks up the descriptor published under agentHash.
	Resolve(ctx context.Context, agentHash string) (*Descriptor, error)
	// Fetch makes the code archive available on local disk and returns its path.
	Fetch(ctx context.Context, codeHash string) (string, error)
}
