package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nais/agentdeploy/pkg/agentd/api"
	api_v1_deploy "github.com/nais/agentdeploy/pkg/agentd/api/v1/deploy"
	"github.com/nais/agentdeploy/pkg/agentd/artifact"
	"github.com/nais/agentdeploy/pkg/agentd/config"
	"github.com/nais/agentdeploy/pkg/agentd/connectivity"
	"github.com/nais/agentdeploy/pkg/agentd/database"
	"github.com/nais/agentdeploy/pkg/agentd/keys"
	"github.com/nais/agentdeploy/pkg/agentd/ledger"
	"github.com/nais/agentdeploy/pkg/agentd/marketplace"
	"github.com/nais/agentdeploy/pkg/agentd/middleware"
	"github.com/nais/agentdeploy/pkg/agentd/money"
	"github.com/nais/agentdeploy/pkg/agentd/orchestrator"
	"github.com/nais/agentdeploy/pkg/agentd/shell"
	"github.com/nais/agentdeploy/pkg/conftools"
	"github.com/nais/agentdeploy/pkg/logging"
	"github.com/nais/agentdeploy/pkg/telemetry"
	"github.com/nais/agentdeploy/pkg/version"
	log "github.com/sirupsen/logrus"
)

var maskedConfig = []string{
	config.DatabaseUrl,
	config.FrontendKeys,
}

const (
	databaseConnectBackoffInterval = 3 * time.Second
	shutdownTimeout                = 30 * time.Second
)

func run() error {
	cfg := config.Initialize()
	err := conftools.Load(cfg)
	if err != nil {
		return err
	}

	if err := logging.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	// Welcome
	log.Infof("agentd %s", version.Version())
	ts, err := version.BuildTime()
	if err == nil {
		log.Infof("This version was built %s", ts.Local())
	}

	for _, line := range conftools.Format(maskedConfig) {
		log.Info(line)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if len(cfg.OtelCollectorEndpoint) > 0 {
		tracerProvider, err := telemetry.New(ctx, "agentd", cfg.OtelCollectorEndpoint)
		if err != nil {
			return fmt.Errorf("set up tracing: %w", err)
		}
		defer tracerProvider.Shutdown(context.Background())
		log.Infof("Sending traces to %s", cfg.OtelCollectorEndpoint)
	}

	store, closeStore, err := setupStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	requiredTokens, err := money.FormatCost(cfg.RequiredTokens)
	if err != nil {
		return fmt.Errorf("%s: %w", config.RequiredTokens, err)
	}

	minGasBalance, err := money.FormatCost(cfg.Wallet.MinGasBalance)
	if err != nil {
		return fmt.Errorf("%s: %w", config.WalletMinGasBalance, err)
	}
	wallet := ledger.NewWallet(cfg.Wallet.URL, &ledger.MinimumBalanceGate{
		Token:   ledger.TokenFallback,
		Minimum: minGasBalance,
	}, cfg.Wallet.RateLimit)

	target, err := selectTarget(cfg.Target)
	if err != nil {
		return err
	}
	log.Infof("Deploying to compute node %s (%s)", target.URL, target.Hash)

	policy, err := buildPolicy(cfg.Policy)
	if err != nil {
		return err
	}

	command, err := shell.NewInstallCommand(cfg.Provision.CommandTemplate, cfg.Provision.Runtime, cfg.Provision.PackageManager, cfg.Provision.Usage)
	if err != nil {
		return fmt.Errorf("%s: %w", config.ProvisionCommandTemplate, err)
	}

	registry := orchestrator.NewRegistry(ctx, orchestrator.Config{
		Store:       store,
		Keys:        &keys.Directory{Path: cfg.KeysPath, Bits: cfg.KeyBits},
		Marketplace: marketplace.NewClient(cfg.ApiURL),
		Artifacts:   artifact.NewHTTPStore(cfg.ApiURL, cfg.AgentPostType, cfg.CodeFilesPath),
		Prober:      &connectivity.PingProber{},
		Provisioner: &shell.SSHProvisioner{
			Dialer: &shell.SSHDialer{
				User:    cfg.Provision.User,
				Timeout: cfg.Provision.DialTimeout,
			},
			ScriptPath: filepath.Join(cfg.ScriptsPath, "deploy.sh"),
			Command:    command,
		},
		Target:            target,
		CommunityReceiver: cfg.CommunityReceiver,
		PlatformAddress:   cfg.Wallet.PlatformAddr,
		BreakGlassKeys:    cfg.BreakGlassKeys,
		Resources: marketplace.Resources{
			VCPUs:    cfg.Instance.VCPUs,
			MemoryMB: cfg.Instance.MemoryMB,
			DiskMB:   cfg.Instance.DiskMB,
		},
		Policy: policy,
	})

	go func() {
		for failure := range registry.Failures() {
			log.WithFields(log.Fields{
				"agent_id": failure.ID,
				"status":   failure.Status,
				"reason":   orchestrator.Reason(failure.Err),
			}).Warnf("Deployment needs to be resumed: %s", failure.Err)
		}
	}()

	apiConfig := api.Config{
		DeployHandler: &api_v1_deploy.Handler{
			Registry:       registry,
			Store:          store,
			Wallet:         wallet,
			RequiredTokens: requiredTokens,
		},
		MetricsPath: cfg.MetricsPath,
	}
	if len(cfg.FrontendKeys) > 0 {
		apiConfig.PSKValidator = middleware.PskValidatorMiddleware(cfg.FrontendKeys)
		log.Infof("Using PSK validator")
	}

	server := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: api.New(apiConfig),
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err)
		}
	}()

	log.Infof("Ready to accept connections on %s", cfg.ListenAddress)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals

	log.Infof("Received signal %s (%d), exiting...", sig, sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	err = server.Shutdown(shutdownCtx)
	if err != nil {
		log.Errorf("Shutting down HTTP server: %s", err)
	}

	// Interrupted deployments keep their last persisted status and can be resumed after restart.
	cancel()
	registry.Wait()

	return nil
}

// setupStore connects to postgres, or keeps records in memory when no database is configured.
func setupStore(ctx context.Context, cfg *config.Config) (database.Store, func(), error) {
	if len(cfg.DatabaseURL) == 0 {
		log.Warnf("No database configured; deployment records are lost on restart")
		return database.NewMemory(), func() {}, nil
	}

	var db *database.Database
	var err error

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseConnectTimeout)
	for {
		log.Infof("Connecting to database...")
		db, err = database.New(connectCtx, cfg.DatabaseURL)
		if err == nil {
			log.Infof("Database connection established.")
			break
		} else if connectCtx.Err() != nil {
			break
		} else {
			log.Errorf("unable to connect to database: %s", err)
			time.Sleep(databaseConnectBackoffInterval)
		}
	}
	cancel()
	if err != nil {
		return nil, nil, fmt.Errorf("setup postgres connection: %s", err)
	}

	err = db.Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrating database: %s", err)
	}

	return db, db.Close, nil
}

func selectTarget(cfg config.Target) (marketplace.Target, error) {
	if len(cfg.File) > 0 {
		targets, err := marketplace.LoadTargets(cfg.File)
		if err != nil {
			return marketplace.Target{}, err
		}
		return marketplace.SelectTarget(targets, cfg.Name)
	}

	target := marketplace.Target{
		Name:     cfg.Name,
		URL:      cfg.URL,
		Hash:     cfg.Hash,
		Receiver: cfg.Receiver,
	}
	if err := target.Validate(); err != nil {
		return marketplace.Target{}, fmt.Errorf("target: %w", err)
	}
	return target, nil
}

func buildPolicy(cfg config.Policy) (orchestrator.Policy, error) {
	buffer, err := money.FormatCost(cfg.FundingBuffer)
	if err != nil {
		return orchestrator.Policy{}, fmt.Errorf("%s: %w", config.PolicyFundingBuffer, err)
	}

	return orchestrator.Policy{
		FundingWindow:        cfg.FundingWindow,
		FundingBuffer:        buffer,
		FlowInterval:         cfg.FlowInterval,
		ConnectivityAttempts: cfg.ConnectivityAttempts,
		ConnectivityTimeout:  cfg.ConnectivityTimeout,
		SettleDelay:          cfg.SettleDelay,
		ProvisionAttempts:    cfg.ProvisionAttempts,
		ProvisionTimeout:     cfg.ProvisionTimeout,
		CallTimeout:          cfg.CallTimeout,
	}, nil
}

func main() {
	err := run()
	if err != nil {
		log.Errorf("Fatal error: %s", err)
		os.Exit(1)
	}
}
