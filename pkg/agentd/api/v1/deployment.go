package api_v1

import (
	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
)

// Deployment is the public view of a deployment record.
type Deployment struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Owner          string            `json:"owner"`
	WalletAddress  string            `json:"wallet_address"`
	RequiredTokens math.LegacyDec    `json:"required_tokens"`
	AgentHash      string            `json:"agent_hash"`
	InstanceHash   string            `json:"instance_hash,omitempty"`
	Status         deployment.Status `json:"status"`
	LastUpdate     int64             `json:"last_update"`
	LastError      string            `json:"last_error,omitempty"`
	Running        bool              `json:"running"`
}

func PublicDeployment(record deployment.Record, running bool) Deployment {
	return Deployment{
		ID:             record.ID,
		Name:           record.Name,
		Owner:          record.Owner,
		WalletAddress:  record.WalletAddress,
		RequiredTokens: record.RequiredTokens,
		AgentHash:      record.AgentHash,
		InstanceHash:   record.InstanceHash,
		Status:         record.Status,
		LastUpdate:     record.LastUpdate,
		LastError:      record.LastError,
		Running:        running,
	}
}
