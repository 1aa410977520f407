package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/nais/agentdeploy/pkg/agentd/keys"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

const (
	RemoteArtifactPath = "/tmp/agent.zip"
	RemoteEnvPath      = "/tmp/.env"
	RemoteScriptPath   = "/tmp/deploy-agent.sh"
)

// Job is everything needed to install one agent on its instance.
type Job struct {
	AgentID      string
	Host         string
	Keypair      keys.Keypair
	ArtifactPath string
	Secrets      Secrets
}

type Provisioner interface {
	Provision(ctx context.Context, job Job) error
}

type SSHProvisioner struct {
	Dialer     Dialer
	ScriptPath string
	Command    *InstallCommand
}

var _ Provisioner = &SSHProvisioner{}

// Provision uploads the code archive, the environment file and the install script, then runs the
// install command. The exit status of the install script is logged but does not fail provisioning.
func (p *SSHProvisioner) Provision(ctx context.Context, job Job) error {
	logger := log.WithField("agent_id", job.AgentID)

	artifact, err := os.Open(job.ArtifactPath)
	if err != nil {
		return fmt.Errorf("open code archive: %w", err)
	}
	defer artifact.Close()

	script, err := os.ReadFile(p.ScriptPath)
	if err != nil {
		return fmt.Errorf("read install script: %w", err)
	}

	env, err := job.Secrets.EnvFile()
	if err != nil {
		return err
	}

	command, err := p.Command.Render(RemoteScriptPath)
	if err != nil {
		return err
	}

	signer, err := job.Keypair.Signer()
	if err != nil {
		return fmt.Errorf("load ssh key: %w", err)
	}

	session, err := p.Dialer.Dial(ctx, job.Host, signer)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", job.Host, err)
	}
	defer session.Close()

	err = session.Upload(RemoteArtifactPath, artifact, 0o644)
	if err != nil {
		return fmt.Errorf("upload code archive: %w", err)
	}
	err = session.Upload(RemoteEnvPath, bytes.NewReader(env), 0o600)
	if err != nil {
		return fmt.Errorf("upload environment: %w", err)
	}
	err = session.Upload(RemoteScriptPath, bytes.NewReader(script), 0o755)
	if err != nil {
		return fmt.Errorf("upload install script: %w", err)
	}

	logger.Infof("Running install command on %s", job.Host)
	output, err := session.Run(ctx, command)

	var exitErr *ssh.ExitError
	switch {
	case errors.As(err, &exitErr):
		var stderr []byte
		if output != nil {
			stderr = bytes.TrimSpace(output.Stderr)
		}
		logger.Warnf("Install script exited with status %d: %s", exitErr.ExitStatus(), stderr)
	case err != nil:
		return fmt.Errorf("run install command: %w", err)
	}

	return nil
}
