package agentclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	api_v1 "github.com/nais/agentdeploy/pkg/agentd/api/v1"
	api_v1_deploy "github.com/nais/agentdeploy/pkg/agentd/api/v1/deploy"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/telemetry"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultServer       = "http://localhost:8080"
	DefaultPollInterval = time.Second * 10
	DefaultTimeout      = time.Minute * 45
)

type Deployer struct {
	Client *Client
}

// Prepare builds the deployment request from configuration.
// Variables given on the command line override those from the env file.
func Prepare(cfg *Config) (*api_v1_deploy.Request, error) {
	env := make(map[string]string)

	if len(cfg.EnvFile) > 0 {
		var err error
		env, err = envFromFile(cfg.EnvFile)
		if err != nil {
			return nil, Errorf(ExitInvocationFailure, "load environment variables: %s", err)
		}
	}

	for key, val := range envFromSlice(cfg.Env) {
		if _, ok := env[key]; ok {
			log.Warnf("Overwriting environment variable '%s'", key)
		}
		log.Infof("Setting environment variable '%s'", key)
		env[key] = val
	}

	return &api_v1_deploy.Request{
		AgentID:      cfg.AgentID,
		AgentKey:     cfg.AgentKey,
		AgentHash:    cfg.AgentHash,
		Owner:        cfg.Owner,
		Name:         cfg.Name,
		EnvVariables: env,
	}, nil
}

func envFromFile(path string) (map[string]string, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: open file: %s", path, err)
	}

	env := make(map[string]string)
	err = yaml.Unmarshal(file, &env)
	if err != nil {
		return nil, fmt.Errorf("%s: %s", path, strings.ReplaceAll(err.Error(), "\n", ": "))
	}
	return env, nil
}

func envFromSlice(vars []string) map[string]string {
	env := make(map[string]string)
	for _, keyval := range vars {
		tokens := strings.SplitN(keyval, "=", 2)
		if len(tokens[0]) == 0 {
			continue
		}
		if len(tokens) == 2 {
			env[tokens[0]] = tokens[1]
		} else {
			env[tokens[0]] = ""
		}
	}
	return env
}

// Deploy sends the request and, with cfg.Wait, follows the deployment until the agent is alive
// or the server reports that the run stopped.
func (d *Deployer) Deploy(ctx context.Context, cfg *Config, request *api_v1_deploy.Request) error {
	ctx, span := telemetry.Tracer().Start(ctx, "Send agent deploy request and wait for completion")
	var err error
	defer func() { telemetry.End(span, err) }()

	log.Infof("Sending deployment request to agentd at %s...", cfg.Server)

	var accepted *api_v1.Deployment
	var message string
	err = retryUnavailable(ctx, cfg.RetryInterval, cfg.Retry, func() error {
		var rerr error
		accepted, message, rerr = d.Client.Deploy(ctx, *request)
		return rerr
	})
	if err != nil {
		if ctx.Err() != nil {
			err = Errorf(ExitTimeout, "deployment timed out: %s", ctx.Err())
			return err
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < http.StatusInternalServerError {
			err = ErrorWrap(ExitRejected, err)
			return err
		}
		err = ErrorWrap(ExitNoDeployment, err)
		return err
	}

	span.SetAttributes(telemetry.AgentAttributes(accepted.ID, accepted.Status.String(), accepted.InstanceHash)...)

	log.Infof("Deployment request accepted by agentd: %s", message)
	log.Infof("Deployment information:")
	log.Infof("---")
	log.Infof("id...........: %s", accepted.ID)
	log.Infof("wallet.......: %s", accepted.WalletAddress)
	log.Infof("required.....: %s", accepted.RequiredTokens)
	log.Info("---")
	logDeployment(accepted)

	if accepted.Status == deployment.StatusAlive || !cfg.Wait {
		return nil
	}

	log.Infof("Waiting for agent to become alive...")

	err = d.wait(ctx, cfg, *accepted)
	return err
}

func (d *Deployer) wait(ctx context.Context, cfg *Config, accepted api_v1.Deployment) error {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	seenRunning := accepted.Running
	last := accepted

	for {
		select {
		case <-ctx.Done():
			return Errorf(ExitTimeout, "deployment timed out at %s: %w", last.Status, ctx.Err())
		case <-ticker.C:
		}

		var current *api_v1.Deployment
		err := retryUnavailable(ctx, cfg.RetryInterval, cfg.Retry, func() error {
			var rerr error
			current, rerr = d.Client.Status(ctx, accepted.ID)
			return rerr
		})
		if err != nil {
			if ctx.Err() != nil {
				return Errorf(ExitTimeout, "deployment timed out at %s: %w", last.Status, ctx.Err())
			}
			return ErrorWrap(ExitUnavailable, err)
		}

		if current.Status != last.Status {
			logDeployment(current)
		}
		seenRunning = seenRunning || current.Running
		last = *current

		done, err := Finished(accepted, *current, seenRunning)
		if done {
			return err
		}
	}
}

// Finished decides whether a deployment has reached a final state since it was accepted.
// A stopped run with an error is only final when it is newer than what the server reported on acceptance.
func Finished(accepted, current api_v1.Deployment, seenRunning bool) (bool, error) {
	if current.Status == deployment.StatusAlive {
		return true, nil
	}
	if current.Running || len(current.LastError) == 0 {
		return false, nil
	}

	stale := !seenRunning && current.LastUpdate == accepted.LastUpdate && current.LastError == accepted.LastError
	if stale {
		return false, nil
	}

	return true, Errorf(ExitDeploymentError, "deployment stopped at %s: %s", current.Status, current.LastError)
}

func logDeployment(d *api_v1.Deployment) {
	logger := log.WithFields(log.Fields{
		"agent_id": d.ID,
		"status":   d.Status,
	})
	switch {
	case d.Status == deployment.StatusAlive:
		logger.Infof("Agent is alive on instance %s", d.InstanceHash)
	case len(d.LastError) > 0 && !d.Running:
		logger.Warnf("Deployment stopped at %s: %s", d.Status, d.LastError)
	default:
		logger.Infof("Deployment is at %s", d.Status)
	}
}

func retryUnavailable(ctx context.Context, interval time.Duration, retry bool, fn func() error) error {
	for {
		err := fn()
		if !retry || !retriable(err) {
			return err
		}
		log.Warnf("%s (retrying in %s...)", err, interval)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(interval):
		}
	}
}
