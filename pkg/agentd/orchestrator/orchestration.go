package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nais/agentdeploy/pkg/agentd/artifact"
	"github.com/nais/agentdeploy/pkg/agentd/connectivity"
	"github.com/nais/agentdeploy/pkg/agentd/database"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/agentd/keys"
	"github.com/nais/agentdeploy/pkg/agentd/ledger"
	"github.com/nais/agentdeploy/pkg/agentd/marketplace"
	"github.com/nais/agentdeploy/pkg/agentd/metrics"
	"github.com/nais/agentdeploy/pkg/agentd/shell"
	"github.com/nais/agentdeploy/pkg/telemetry"
	log "github.com/sirupsen/logrus"
	otrace "go.opentelemetry.io/otel/trace"
)

// Config wires the collaborators shared by every orchestration.
type Config struct {
	Store       database.Store
	Keys        keys.Store
	Marketplace marketplace.Client
	Artifacts   artifact.Store
	Prober      connectivity.Prober
	Provisioner shell.Provisioner

	Target            marketplace.Target
	CommunityReceiver string
	PlatformAddress   string
	BreakGlassKeys    []string
	// Resources requested for agents that do not declare their own.
	Resources marketplace.Resources
	Policy    Policy

	// Failures is the capacity of the registry failure channel.
	Failures int

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (cfg *Config) now() time.Time {
	if cfg.Now == nil {
		return time.Now()
	}
	return cfg.Now()
}

func (cfg *Config) sleep(ctx context.Context, d time.Duration) error {
	if cfg.Sleep != nil {
		return cfg.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Orchestration drives the deployment of one agent through its states.
type Orchestration struct {
	cfg     *Config
	account ledger.Account
	keypair keys.Keypair
	env     map[string]string
	created time.Time
	logger  *log.Entry

	// held for the duration of a run
	lock    sync.Mutex
	running atomic.Bool

	state      sync.RWMutex
	record     deployment.Record
	descriptor *artifact.Descriptor
}

func newOrchestration(cfg *Config, record deployment.Record, account ledger.Account, keypair keys.Keypair, env map[string]string) *Orchestration {
	overrides := make(map[string]string, len(env))
	for k, v := range env {
		overrides[k] = v
	}
	return &Orchestration{
		cfg:     cfg,
		account: account,
		keypair: keypair,
		env:     overrides,
		created: cfg.now(),
		logger:  log.WithField("agent_id", record.ID),
		record:  record.Copy(),
	}
}

func (o *Orchestration) ID() string {
	return o.Record().ID
}

// Record returns a snapshot of the cached deployment record.
func (o *Orchestration) Record() deployment.Record {
	o.state.RLock()
	defer o.state.RUnlock()
	return o.record.Copy()
}

// Running reports whether a deployment run is in progress.
func (o *Orchestration) Running() bool {
	return o.running.Load()
}

// Deploy continues the deployment from the last persisted status until the agent is alive
// or a step fails. A call made while another run is in progress returns nil immediately.
func (o *Orchestration) Deploy(ctx context.Context) error {
	if !o.lock.TryLock() {
		o.logger.Debugf("Deployment already in progress")
		return nil
	}
	defer o.lock.Unlock()

	o.running.Store(true)
	defer o.running.Store(false)
	metrics.RunStarted()
	defer metrics.RunFinished()

	ctx, span := telemetry.Tracer().Start(ctx, "Deploy agent", otrace.WithAttributes(
		telemetry.AgentAttributes(o.ID(), "", "")...,
	))
	err := o.deploy(ctx)
	telemetry.End(span, err)

	return err
}

func (o *Orchestration) deploy(ctx context.Context) error {
	err := o.refresh(ctx)
	if err != nil {
		return err
	}

	o.resolveMissingAddress(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		current := o.Record().Status
		name, run := o.step(current)
		if run == nil {
			return fmt.Errorf("no step for status '%s'", current)
		}

		err := o.runStep(ctx, name, run)
		if err != nil {
			return err
		}

		if current.Terminal() {
			return nil
		}

		if o.Record().Status == current {
			return fmt.Errorf("step %s returned without leaving status %s", name, current)
		}
	}
}

func (o *Orchestration) step(status deployment.Status) (string, func(context.Context) error) {
	switch status {
	case deployment.StatusPendingFund:
		return "create_instance", o.createInstance
	case deployment.StatusPendingSwap:
		return "create_flows", o.createFlows
	case deployment.StatusPendingAllocation:
		return "notify", o.notify
	case deployment.StatusPendingStart:
		return "check_connectivity", o.checkConnectivity
	case deployment.StatusPendingDeploy:
		return "deploy_code", o.deployCode
	case deployment.StatusAlive:
		return "cleanup", o.cleanup
	}
	return "", nil
}

func (o *Orchestration) runStep(ctx context.Context, name string, run func(context.Context) error) error {
	record := o.Record()
	ctx, span := telemetry.Tracer().Start(ctx, name, otrace.WithAttributes(
		telemetry.AgentAttributes(record.ID, record.Status.String(), record.InstanceHash)...,
	))

	start := time.Now()
	err := run(ctx)
	metrics.StepDuration(name, start, err)
	telemetry.End(span, err)

	return err
}

// refresh replaces the cached record with the persisted one.
func (o *Orchestration) refresh(ctx context.Context) error {
	id := o.ID()
	records, err := call(ctx, o.cfg.Policy.CallTimeout, func(ctx context.Context) ([]deployment.Record, error) {
		return o.cfg.Store.Fetch(ctx, database.Filter{IDs: []string{id}})
	})
	if err != nil {
		return fmt.Errorf("fetch deployment %s: %w", id, err)
	}
	if len(records) != 1 {
		return fmt.Errorf("expected exactly one deployment with id %s, found %d", id, len(records))
	}

	o.state.Lock()
	o.record = records[0]
	o.state.Unlock()

	o.logger.WithField("status", records[0].Status).Debugf("Loaded deployment record")
	return nil
}

// resolveMissingAddress looks up the instance address of a record that has
// passed allocation without one. Failure is left for the connectivity check.
func (o *Orchestration) resolveMissingAddress(ctx context.Context) {
	record := o.Record()
	if len(record.InstanceHash) == 0 || len(record.InstanceIP) > 0 || !record.Status.AtLeast(deployment.StatusPendingStart) {
		return
	}

	ip, err := call(ctx, o.cfg.Policy.CallTimeout, func(ctx context.Context) (string, error) {
		return o.cfg.Marketplace.ResolveAddress(ctx, o.cfg.Target.URL, record.InstanceHash)
	})
	if err != nil || len(ip) == 0 {
		o.logger.Warnf("Unable to resolve address of instance %s: %v", record.InstanceHash, err)
		return
	}

	err = o.save(ctx, func(r *deployment.Record) {
		r.InstanceIP = ip
	})
	if err != nil {
		o.logger.Warnf("Unable to store address of instance %s: %s", record.InstanceHash, err)
	}
}

// advance applies change, moves the record to the next status and persists it.
// The cached record is only replaced once the store has accepted the new content.
func (o *Orchestration) advance(ctx context.Context, change func(*deployment.Record)) error {
	current := o.Record()
	next, err := current.Advance(o.cfg.now(), change)
	if err != nil {
		return err
	}

	err = o.commit(ctx, next)
	if err != nil {
		return fmt.Errorf("persist status %s: %w", next.Status, err)
	}

	metrics.StateTransition(next.Status.String())
	o.logger.WithField("status", next.Status).Infof("Deployment moved from %s to %s", current.Status, next.Status)
	return nil
}

// save persists a change that does not move the record to another status.
func (o *Orchestration) save(ctx context.Context, change func(*deployment.Record)) error {
	next := o.Record()
	change(&next)
	next.LastUpdate = o.cfg.now().Unix()
	if err := next.Validate(); err != nil {
		return err
	}
	return o.commit(ctx, next)
}

func (o *Orchestration) commit(ctx context.Context, next deployment.Record) error {
	_, err := call(ctx, o.cfg.Policy.CallTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.cfg.Store.Amend(ctx, next.Handle, next)
	})
	if err != nil {
		return err
	}

	o.state.Lock()
	o.record = next
	o.state.Unlock()
	return nil
}

// recordFailure stores the message of a failed run on the record, unless another run has started since.
func (o *Orchestration) recordFailure(ctx context.Context, failure error) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	return o.save(ctx, func(r *deployment.Record) {
		r.LastError = failure.Error()
	})
}

func (o *Orchestration) resolveDescriptor(ctx context.Context) (*artifact.Descriptor, error) {
	o.state.RLock()
	descriptor := o.descriptor
	o.state.RUnlock()
	if descriptor != nil {
		return descriptor, nil
	}

	agentHash := o.Record().AgentHash
	descriptor, err := call(ctx, o.cfg.Policy.CallTimeout, func(ctx context.Context) (*artifact.Descriptor, error) {
		return o.cfg.Artifacts.Resolve(ctx, agentHash)
	})
	if err != nil {
		return nil, err
	}

	o.state.Lock()
	o.descriptor = descriptor
	o.state.Unlock()
	return descriptor, nil
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}
