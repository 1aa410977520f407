package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/agentd/ledger"
	"github.com/nais/agentdeploy/pkg/agentd/metrics"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultFailureBuffer = 64

	failureRecordTimeout = 30 * time.Second
)

// Failure is a deployment run that stopped with an error.
type Failure struct {
	ID     string
	Status deployment.Status
	Err    error
}

// Registry owns one Orchestration per agent and runs their deployments in the background.
// Entries are never removed.
type Registry struct {
	ctx      context.Context
	cfg      *Config
	lock     sync.RWMutex
	entries  map[string]*Orchestration
	failures chan Failure
	wg       sync.WaitGroup
}

// NewRegistry creates a registry whose background runs use ctx. Cancelling ctx stops them at their next call.
func NewRegistry(ctx context.Context, cfg Config) *Registry {
	capacity := cfg.Failures
	if capacity <= 0 {
		capacity = DefaultFailureBuffer
	}
	return &Registry{
		ctx:      ctx,
		cfg:      &cfg,
		entries:  make(map[string]*Orchestration),
		failures: make(chan Failure, capacity),
	}
}

// New registers the deployment and starts it in the background.
// The record must already exist in the store.
func (r *Registry) New(record deployment.Record, account ledger.Account, env map[string]string) (*Orchestration, error) {
	if r.exists(record.ID) {
		return nil, fmt.Errorf("%w: %s", ErrConflict, record.ID)
	}

	// Recover may generate a key and runs outside the registry lock.
	// A caller losing the race below keeps nothing; the stored key belongs to the id.
	keypair, err := r.cfg.Keys.Recover(record.ID)
	if err != nil {
		return nil, fmt.Errorf("recover keypair for %s: %w", record.ID, err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.entries[record.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrConflict, record.ID)
	}

	orchestration := newOrchestration(r.cfg, record, account, keypair, env)
	r.entries[record.ID] = orchestration
	metrics.SetRegistered(len(r.entries))

	r.launch(orchestration)

	return orchestration, nil
}

func (r *Registry) exists(id string) bool {
	r.lock.RLock()
	defer r.lock.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Get returns the orchestration for id, or nil. With resume, its deployment is continued in the background.
func (r *Registry) Get(id string, resume bool) *Orchestration {
	r.lock.RLock()
	orchestration := r.entries[id]
	r.lock.RUnlock()

	if orchestration != nil && resume {
		r.launch(orchestration)
	}

	return orchestration
}

// List returns all orchestrations ordered by id.
func (r *Registry) List() []*Orchestration {
	r.lock.RLock()
	list := make([]*Orchestration, 0, len(r.entries))
	for _, orchestration := range r.entries {
		list = append(list, orchestration)
	}
	r.lock.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].ID() < list[j].ID()
	})
	return list
}

// Failures delivers failed runs. Failures are dropped when nobody keeps up with the channel.
func (r *Registry) Failures() <-chan Failure {
	return r.failures
}

// Wait blocks until every run started so far has returned.
func (r *Registry) Wait() {
	r.wg.Wait()
}

func (r *Registry) launch(orchestration *Orchestration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := orchestration.Deploy(r.ctx)
		if err != nil {
			r.fail(orchestration, err)
		}
	}()
}

func (r *Registry) fail(orchestration *Orchestration, err error) {
	record := orchestration.Record()
	logger := log.WithFields(log.Fields{
		"agent_id": record.ID,
		"status":   record.Status,
	})
	logger.Errorf("Deployment stopped: %s", err)
	metrics.DeploymentFailed(record.Status.String(), Reason(err))

	if !errors.Is(err, context.Canceled) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), failureRecordTimeout)
		recordErr := orchestration.recordFailure(ctx, err)
		cancel()
		if recordErr != nil {
			logger.Warnf("Unable to store failure on deployment record: %s", recordErr)
		}
	}

	select {
	case r.failures <- Failure{ID: record.ID, Status: record.Status, Err: err}:
	default:
		logger.Debugf("Failure channel full, dropping failure")
	}
}
