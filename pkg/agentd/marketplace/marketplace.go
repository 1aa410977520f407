package marketplace

import (
	"context"

	"cosmossdk.io/math"
)

// Target is the compute node that hosts allocations and receives the operator payment stream.
type Target struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Hash     string `json:"hash"`
	Receiver string `json:"receiver"`
}

type Resources struct {
	VCPUs    int `json:"vcpus"`
	MemoryMB int `json:"memory"`
	DiskMB   int `json:"disk"`
}

func (r Resources) IsZero() bool {
	return r.VCPUs == 0 && r.MemoryMB == 0 && r.DiskMB == 0
}

// Or fills unset fields of r from defaults.
func (r Resources) Or(defaults Resources) Resources {
	if r.VCPUs == 0 {
		r.VCPUs = defaults.VCPUs
	}
	if r.MemoryMB == 0 {
		r.MemoryMB = defaults.MemoryMB
	}
	if r.DiskMB == 0 {
		r.DiskMB = defaults.DiskMB
	}
	return r
}

type AllocationRequest struct {
	Owner     string            `json:"address"`
	SSHKeys   []string          `json:"ssh_keys"`
	Resources Resources         `json:"resources"`
	Metadata  map[string]string `json:"metadata"`
	Target    Target            `json:"-"`
}

type Client interface {
	// CreateAllocation reserves an instance and returns its handle.
	CreateAllocation(ctx context.Context, request AllocationRequest) (string, error)
	// Price returns the per-second community and operator rates of an instance.
	Price(ctx context.Context, handle string) (community, operator math.LegacyDec, err error)
	// NotifyFunded tells the compute node that payment for the instance is in place.
	NotifyFunded(ctx context.Context, nodeURL, handle string) (bool, error)
	// ResolveAddress returns the instance address, or an empty string if the node does not know it yet.
	ResolveAddress(ctx context.Context, nodeURL, handle string) (string, error)
}
