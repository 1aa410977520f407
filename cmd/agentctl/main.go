package main

import (
	"context"
	"os"

	"github.com/nais/agentdeploy/pkg/agentclient"
	api_v1 "github.com/nais/agentdeploy/pkg/agentd/api/v1"
	"github.com/nais/agentdeploy/pkg/logging"
	"github.com/nais/agentdeploy/pkg/version"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
)

func main() {
	err := run()
	if err == nil {
		return
	}
	code := agentclient.ErrorExitCode(err)
	if code == agentclient.ExitInvocationFailure {
		flag.Usage()
	}
	log.Errorf("fatal: %s", err)
	os.Exit(int(code))
}

func run() error {
	// Configuration and context
	cfg := agentclient.NewConfig()
	agentclient.InitConfig(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	// Logging
	level := "info"
	if cfg.Quiet {
		level = "error"
	}
	err := logging.Setup(level, cfg.LogFormat)
	if err != nil {
		return agentclient.ErrorWrap(agentclient.ExitInvocationFailure, err)
	}

	err = cfg.Validate()
	if err != nil {
		return agentclient.ErrorWrap(agentclient.ExitInvocationFailure, err)
	}

	// Welcome
	log.Debugf("agentctl %s", version.Version())

	client := agentclient.NewClient(cfg.Server, cfg.PSK)

	switch cfg.Command {
	case agentclient.CommandStatus:
		deployment, err := client.Status(ctx, cfg.AgentID)
		if err != nil {
			return agentclient.ErrorWrap(agentclient.ExitUnavailable, err)
		}
		return agentclient.PrintDeployments(os.Stdout, []api_v1.Deployment{*deployment})

	case agentclient.CommandList:
		deployments, err := client.List(ctx, cfg.Owner)
		if err != nil {
			return agentclient.ErrorWrap(agentclient.ExitUnavailable, err)
		}
		return agentclient.PrintDeployments(os.Stdout, deployments)
	}

	request, err := agentclient.Prepare(cfg)
	if err != nil {
		return err
	}

	d := agentclient.Deployer{
		Client: client,
	}

	return d.Deploy(ctx, cfg, request)
}
