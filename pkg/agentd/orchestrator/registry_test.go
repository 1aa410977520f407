package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var overrides = map[string]string{"FOO": "bar"}

func receive(t *testing.T, registry *Registry) Failure {
	select {
	case failure := <-registry.Failures():
		return failure
	case <-time.After(5 * time.Second):
		t.Fatal("no failure reported")
	}
	return Failure{}
}

func TestRegistryDeploysInBackground(t *testing.T) {
	f := newFixture(t)
	record := f.create(t, deployment.StatusPendingDeploy)

	f.keys.On("Recover", agentID).Return(f.keypair, nil).Once()
	f.expectDescriptor()
	f.expectProvisioning(1, nil)
	f.keys.On("Remove", agentID).Return(nil).Once()

	registry := NewRegistry(context.Background(), f.cfg)
	orchestration, err := registry.New(record, f.account, overrides)
	require.NoError(t, err)
	registry.Wait()

	assert.Equal(t, deployment.StatusAlive, f.latest(t).Status)
	assert.Same(t, orchestration, registry.Get(agentID, false))
	assert.Nil(t, registry.Get("unknown", true))
	assert.Len(t, registry.List(), 1)

	_, err = registry.New(record, f.account, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegistryLookupsDoNotWaitForKeys(t *testing.T) {
	f := newFixture(t)
	record := f.create(t, deployment.StatusPendingDeploy)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	f.keys.On("Recover", agentID).Run(func(mock.Arguments) {
		entered <- struct{}{}
		<-release
	}).Return(f.keypair, nil).Times(2)
	f.expectDescriptor()
	f.expectProvisioning(1, nil)
	f.keys.On("Remove", agentID).Return(nil).Once()

	type result struct {
		orchestration *Orchestration
		err           error
	}
	results := make(chan result, 2)

	registry := NewRegistry(context.Background(), f.cfg)
	for range 2 {
		go func() {
			orchestration, err := registry.New(record, f.account, overrides)
			results <- result{orchestration, err}
		}()
	}
	<-entered
	<-entered

	looked := make(chan struct{})
	go func() {
		defer close(looked)
		assert.Empty(t, registry.List())
		assert.Nil(t, registry.Get(agentID, false))
	}()
	select {
	case <-looked:
	case <-time.After(5 * time.Second):
		t.Fatal("lookup blocked while a keypair was recovered")
	}

	close(release)
	first, second := <-results, <-results
	registry.Wait()

	conflicts := 0
	for _, r := range []result{first, second} {
		if r.err != nil {
			assert.ErrorIs(t, r.err, ErrConflict)
			conflicts++
			continue
		}
		assert.Same(t, r.orchestration, registry.Get(agentID, false))
	}
	assert.Equal(t, 1, conflicts)
	assert.Len(t, registry.List(), 1)
	assert.Equal(t, deployment.StatusAlive, f.latest(t).Status)
}

func TestRegistryList(t *testing.T) {
	f := newFixture(t)
	f.keys.On("Recover", mock.Anything).Return(f.keypair, nil)
	f.keys.On("Remove", mock.Anything).Return(nil)

	registry := NewRegistry(context.Background(), f.cfg)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		record := deployment.New(id, id, "0xowner", walletAddr, agentHash, math.LegacyNewDec(10))
		record.Status = deployment.StatusAlive
		record.InstanceHash = instanceHash
		record.InstanceIP = instanceIP
		handle, err := f.store.Create(context.Background(), record)
		require.NoError(t, err)
		record.Handle = handle

		_, err = registry.New(record, f.account, nil)
		require.NoError(t, err)
	}
	registry.Wait()

	var ids []string
	for _, orchestration := range registry.List() {
		ids = append(ids, orchestration.ID())
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, ids)
}

func TestRegistryReportsFailures(t *testing.T) {
	f := newFixture(t)
	record := f.create(t, deployment.StatusPendingAllocation)

	f.keys.On("Recover", agentID).Return(f.keypair, nil).Once()
	f.market.On("NotifyFunded", mock.Anything, target.URL, instanceHash).Return(false, nil).Once()

	registry := NewRegistry(context.Background(), f.cfg)
	_, err := registry.New(record, f.account, overrides)
	require.NoError(t, err)

	failure := receive(t, registry)
	registry.Wait()

	assert.Equal(t, agentID, failure.ID)
	assert.Equal(t, deployment.StatusPendingAllocation, failure.Status)
	assert.ErrorIs(t, failure.Err, ErrAllocationNotConfirmed)

	latest := f.latest(t)
	assert.Equal(t, deployment.StatusPendingAllocation, latest.Status)
	assert.Contains(t, latest.LastError, "allocation not confirmed")

	t.Run("resume continues from the persisted status", func(t *testing.T) {
		f.expectNotify()
		f.prober.On("Probe", mock.Anything, instanceIP, 5*time.Second).Return(nil).Once()
		f.artifacts.On("Resolve", mock.Anything, agentHash).Return(nil, errors.New("unavailable")).Once()
		f.expectDescriptor()
		f.expectProvisioning(1, nil)
		f.keys.On("Remove", agentID).Return(nil).Once()

		require.NotNil(t, registry.Get(agentID, true))
		registry.Wait()

		latest := f.latest(t)
		assert.Equal(t, deployment.StatusAlive, latest.Status)
		assert.Empty(t, latest.LastError)
	})
}

func TestRegistryCancelledRunsKeepRecord(t *testing.T) {
	f := newFixture(t)
	record := f.create(t, deployment.StatusPendingFund)
	f.keys.On("Recover", agentID).Return(f.keypair, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registry := NewRegistry(ctx, f.cfg)
	_, err := registry.New(record, f.account, nil)
	require.NoError(t, err)

	failure := receive(t, registry)
	registry.Wait()

	assert.ErrorIs(t, failure.Err, context.Canceled)
	assert.Empty(t, f.latest(t).LastError)
	assert.Empty(t, f.statuses(record.Handle))
}

func TestRegistryKeypairFailure(t *testing.T) {
	f := newFixture(t)
	record := f.create(t, deployment.StatusPendingFund)
	f.keys.On("Recover", agentID).Return(f.keypair, errors.New("read-only file system")).Once()

	registry := NewRegistry(context.Background(), f.cfg)
	_, err := registry.New(record, f.account, nil)
	assert.ErrorContains(t, err, "read-only file system")
	assert.Nil(t, registry.Get(agentID, false))
	assert.Empty(t, registry.List())
}
