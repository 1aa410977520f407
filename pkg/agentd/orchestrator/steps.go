package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/connectivity"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/agentd/ledger"
	"github.com/nais/agentdeploy/pkg/agentd/marketplace"
	"github.com/nais/agentdeploy/pkg/agentd/metrics"
	"github.com/nais/agentdeploy/pkg/agentd/money"
	"github.com/nais/agentdeploy/pkg/agentd/shell"
)

// createInstance requests an allocation on the target node. PENDING_FUND -> PENDING_SWAP.
func (o *Orchestration) createInstance(ctx context.Context) error {
	record := o.Record()

	descriptor, err := o.resolveDescriptor(ctx)
	if err != nil {
		return ErrorWrap(ErrAllocation, fmt.Errorf("resolve agent %s: %w", record.AgentHash, err))
	}

	sshKeys := make([]string, 0, 1+len(o.cfg.BreakGlassKeys))
	sshKeys = append(sshKeys, o.keypair.Public)
	sshKeys = append(sshKeys, o.cfg.BreakGlassKeys...)

	request := marketplace.AllocationRequest{
		Owner:     o.account.Address(),
		SSHKeys:   sshKeys,
		Resources: descriptor.Resources.Or(o.cfg.Resources),
		Metadata: map[string]string{
			"agent_id":   record.ID,
			"agent_hash": record.AgentHash,
			"name":       record.Name,
		},
		Target: o.cfg.Target,
	}

	handle, err := call(ctx, o.cfg.Policy.CallTimeout, func(ctx context.Context) (string, error) {
		return o.cfg.Marketplace.CreateAllocation(ctx, request)
	})
	if err != nil {
		return ErrorWrap(ErrAllocation, err)
	}

	o.logger.Infof("Allocated instance %s on %s", handle, o.cfg.Target.URL)

	err = o.advance(ctx, func(r *deployment.Record) {
		r.InstanceHash = handle
	})
	if err != nil {
		return ErrorWrap(ErrAllocation, err)
	}
	return nil
}

// createFlows makes sure the account can pay for the instance and opens both payment streams.
// PENDING_SWAP -> PENDING_ALLOCATION.
func (o *Orchestration) createFlows(ctx context.Context) error {
	record := o.Record()
	timeout := o.cfg.Policy.CallTimeout

	type price struct {
		community, operator math.LegacyDec
	}
	p, err := call(ctx, timeout, func(ctx context.Context) (price, error) {
		community, operator, err := o.cfg.Marketplace.Price(ctx, record.InstanceHash)
		return price{community: community, operator: operator}, err
	})
	if err != nil {
		return ErrorWrap(ErrFunding, err)
	}

	required := money.MinimumBalance(p.community, p.operator, o.cfg.Policy.FundingWindow, o.cfg.Policy.FundingBuffer)

	balance, err := o.balance(ctx)
	if err != nil {
		return ErrorWrap(ErrFunding, err)
	}

	if balance.LT(required) {
		o.convert(ctx, money.Shortfall(balance, required))

		balance, err = o.balance(ctx)
		if err != nil {
			return ErrorWrap(ErrFunding, err)
		}
	}

	if balance.LT(required) {
		return Errorf(ErrFunding, "balance on address %s is %s and it's less than %s required", o.account.Address(), balance, required)
	}

	operatorTx, err := call(ctx, timeout, func(ctx context.Context) (string, error) {
		return o.account.CreateFlow(ctx, o.cfg.Target.Receiver, p.operator)
	})
	if err != nil {
		return Errorf(ErrFunding, "operator flow: %w", err)
	}
	o.logger.Infof("Operator flow created with transaction %s", operatorTx)

	err = o.cfg.sleep(ctx, o.cfg.Policy.FlowInterval)
	if err != nil {
		return ErrorWrap(ErrFunding, err)
	}

	communityTx, err := call(ctx, timeout, func(ctx context.Context) (string, error) {
		return o.account.CreateFlow(ctx, o.cfg.CommunityReceiver, p.community)
	})
	if err != nil {
		return Errorf(ErrFunding, "community flow (operator flow transaction '%s'): %w", operatorTx, err)
	}
	o.logger.Infof("Community flow created with transaction %s", communityTx)

	if len(operatorTx) == 0 || len(communityTx) == 0 {
		return Errorf(ErrFunding, "flow creation failed, check the remaining flows: operator flow transaction '%s', community flow transaction '%s'", operatorTx, communityTx)
	}

	err = o.advance(ctx, nil)
	if err != nil {
		return ErrorWrap(ErrFunding, err)
	}
	return nil
}

func (o *Orchestration) balance(ctx context.Context) (math.LegacyDec, error) {
	return call(ctx, o.cfg.Policy.CallTimeout, func(ctx context.Context) (math.LegacyDec, error) {
		return o.account.Balance(ctx, ledger.TokenSettlement)
	})
}

// convert swaps fallback currency to cover shortfall. Errors are logged only;
// the balance check that follows decides whether funding is sufficient.
func (o *Orchestration) convert(ctx context.Context, shortfall math.LegacyDec) {
	timeout := o.cfg.Policy.CallTimeout

	amount, err := call(ctx, timeout, func(ctx context.Context) (math.LegacyDec, error) {
		return o.account.Quote(ctx, shortfall)
	})
	if err != nil {
		o.logger.Errorf("Error found quoting %s %s: %s", shortfall, ledger.TokenSettlement, err)
		return
	}

	received, err := call(ctx, timeout, func(ctx context.Context) (math.LegacyDec, error) {
		return o.account.Convert(ctx, amount)
	})
	if err != nil {
		o.logger.Errorf("Error found converting %s to %s: %s", ledger.TokenFallback, ledger.TokenSettlement, err)
		return
	}

	o.logger.Infof("Converted %s %s to %s %s", amount, ledger.TokenFallback, received, ledger.TokenSettlement)
}

// notify tells the node the instance is paid for and stores its address.
// PENDING_ALLOCATION -> PENDING_START.
func (o *Orchestration) notify(ctx context.Context) error {
	record := o.Record()
	timeout := o.cfg.Policy.CallTimeout
	node := o.cfg.Target.URL

	ok, err := call(ctx, timeout, func(ctx context.Context) (bool, error) {
		return o.cfg.Marketplace.NotifyFunded(ctx, node, record.InstanceHash)
	})
	if err != nil {
		return Errorf(ErrAllocationNotConfirmed, "allocation failed with message '%w'", err)
	}
	if !ok {
		return Errorf(ErrAllocationNotConfirmed, "node %s did not confirm instance %s", node, record.InstanceHash)
	}

	ip, err := call(ctx, timeout, func(ctx context.Context) (string, error) {
		return o.cfg.Marketplace.ResolveAddress(ctx, node, record.InstanceHash)
	})
	if err != nil {
		return ErrorWrap(ErrAllocationNotConfirmed, err)
	}
	if len(ip) == 0 {
		return Errorf(ErrAllocationNotConfirmed, "instance %s not found on node %s", record.InstanceHash, node)
	}

	err = o.advance(ctx, func(r *deployment.Record) {
		r.InstanceIP = ip
	})
	if err != nil {
		return ErrorWrap(ErrAllocationNotConfirmed, err)
	}
	return nil
}

// checkConnectivity waits until the instance answers. PENDING_START -> PENDING_DEPLOY.
func (o *Orchestration) checkConnectivity(ctx context.Context) error {
	record := o.Record()
	if len(record.InstanceIP) == 0 {
		return Errorf(ErrHostUnreachable, "instance %s address not defined for agent deployment %s", record.InstanceHash, record.ID)
	}

	attempts := o.cfg.Policy.ConnectivityAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := o.cfg.Policy.ConnectivityTimeout

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := o.cfg.now()
		err = o.cfg.Prober.Probe(ctx, record.InstanceIP, timeout)
		if err == nil {
			break
		}
		if !errors.Is(err, connectivity.ErrNotReachable) {
			return ErrorWrap(ErrHostUnreachable, err)
		}
		if attempt == attempts {
			break
		}

		metrics.StepRetry("check_connectivity")
		o.logger.Debugf("Instance %s not reachable (attempt %d/%d)", record.InstanceIP, attempt, attempts)

		// pace attempts that fail faster than the probe timeout
		if remaining := timeout - o.cfg.now().Sub(start); remaining > 0 {
			if err := o.cfg.sleep(ctx, remaining); err != nil {
				return ErrorWrap(ErrHostUnreachable, err)
			}
		}
	}
	if err != nil {
		return Errorf(ErrHostUnreachable, "%s after %d attempts: %w", record.InstanceIP, attempts, err)
	}

	err = o.advance(ctx, nil)
	if err != nil {
		return ErrorWrap(ErrHostUnreachable, err)
	}

	return o.cfg.sleep(ctx, o.cfg.Policy.SettleDelay)
}

// deployCode installs the agent on the instance. PENDING_DEPLOY -> ALIVE.
func (o *Orchestration) deployCode(ctx context.Context) error {
	attempts := o.cfg.Policy.ProvisionAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = o.provision(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ErrorWrap(ErrProvisioning, err)
		}
		o.logger.Warnf("Provisioning attempt %d/%d failed: %s", attempt, attempts, err)
		if attempt < attempts {
			metrics.StepRetry("deploy_code")
		}
	}
	if err != nil {
		return Errorf(ErrProvisioning, "giving up after %d attempts: %w", attempts, err)
	}

	err = o.advance(ctx, nil)
	if err != nil {
		return ErrorWrap(ErrProvisioning, err)
	}

	metrics.LeadTime(o.created)
	o.logger.Infof("Agent is ALIVE")
	return nil
}

func (o *Orchestration) provision(ctx context.Context) error {
	record := o.Record()
	timeout := o.cfg.Policy.CallTimeout

	descriptor, err := o.resolveDescriptor(ctx)
	if err != nil {
		return fmt.Errorf("resolve agent %s: %w", record.AgentHash, err)
	}

	path, err := call(ctx, timeout, func(ctx context.Context) (string, error) {
		return o.cfg.Artifacts.Fetch(ctx, descriptor.SourceCodeHash)
	})
	if err != nil {
		return fmt.Errorf("fetch code %s: %w", descriptor.SourceCodeHash, err)
	}

	job := shell.Job{
		AgentID:      record.ID,
		Host:         record.InstanceIP,
		Keypair:      o.keypair,
		ArtifactPath: path,
		Secrets: shell.Secrets{
			PrivateKey:      o.account.PrivateKey(),
			CreatorAddress:  descriptor.Creator,
			OwnerAddress:    record.Owner,
			PlatformAddress: o.cfg.PlatformAddress,
			Overrides:       o.env,
		},
	}

	_, err = call(ctx, o.cfg.Policy.ProvisionTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.cfg.Provisioner.Provision(ctx, job)
	})
	return err
}

// cleanup removes the local keypair of an agent that is alive.
func (o *Orchestration) cleanup(_ context.Context) error {
	err := o.cfg.Keys.Remove(o.ID())
	if err != nil {
		return fmt.Errorf("remove keypair: %w", err)
	}
	return nil
}
