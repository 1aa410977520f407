package database

import (
	"context"
	"errors"

	"github.com/nais/agentdeploy/pkg/agentd/deployment"
)

var (
	ErrNotFound  = errors.New("deployment not found")
	ErrDuplicate = errors.New("deployment already exists")
)

// Filter selects deployments. Empty fields match everything.
type Filter struct {
	IDs    []string
	Owners []string
}

func (f Filter) Match(record deployment.Record) bool {
	return matchAny(f.IDs, record.ID) && matchAny(f.Owners, record.Owner)
}

func matchAny(values []string, value string) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// Store keeps deployment records as documents with an append-only amendment history.
type Store interface {
	// Fetch returns the latest content of every matching document, with Handle set.
	Fetch(ctx context.Context, filter Filter) ([]deployment.Record, error)
	// Create stores a new document and returns its handle.
	Create(ctx context.Context, record deployment.Record) (string, error)
	// Amend replaces the content of the document referred to by handle.
	Amend(ctx context.Context, handle string, record deployment.Record) error
}
