package agentclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentclient"
	api_v1 "github.com/nais/agentdeploy/pkg/agentd/api/v1"
	api_v1_deploy "github.com/nais/agentdeploy/pkg/agentd/api/v1/deploy"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/agentd/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const agentID = "8d2bd8a4-6a3f-4e39-9d31-2c6f1e6f6a11"

type reply struct {
	status   int
	response api_v1_deploy.Response
}

// server answers deploy and status requests from scripted replies. The last reply of each script repeats.
type server struct {
	t        *testing.T
	lock     sync.Mutex
	deploys  []reply
	statuses []reply
	requests []api_v1_deploy.Request
	headers  []http.Header
	queries  []string
}

func (s *server) next(script *[]reply) reply {
	r := (*script)[0]
	if len(*script) > 1 {
		*script = (*script)[1:]
	}
	return r
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.headers = append(s.headers, r.Header.Clone())

	var rep reply
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/internal/api/v1/deploy":
		request := api_v1_deploy.Request{}
		assert.NoError(s.t, json.NewDecoder(r.Body).Decode(&request))
		s.requests = append(s.requests, request)
		rep = s.next(&s.deploys)
	case r.Method == http.MethodGet && r.URL.Path == "/internal/api/v1/deployment/"+agentID:
		rep = s.next(&s.statuses)
	case r.Method == http.MethodGet && r.URL.Path == "/internal/api/v1/deployments":
		s.queries = append(s.queries, r.URL.RawQuery)
		rep = reply{status: http.StatusOK, response: api_v1_deploy.Response{
			Deployments: []api_v1.Deployment{view(deployment.StatusAlive, false, "")},
		}}
	default:
		rep = reply{status: http.StatusNotFound}
	}

	w.Header().Set("Content-Type", api_v1.ContentTypeJSON)
	w.WriteHeader(rep.status)
	json.NewEncoder(w).Encode(rep.response)
}

func view(status deployment.Status, running bool, lastError string) api_v1.Deployment {
	return api_v1.Deployment{
		ID:             agentID,
		Name:           "agent",
		Owner:          "0xowner",
		WalletAddress:  "0xagent",
		RequiredTokens: math.LegacyNewDec(10),
		AgentHash:      "agent-hash",
		Status:         status,
		LastUpdate:     1700000000,
		LastError:      lastError,
		Running:        running,
	}
}

func accepted(d api_v1.Deployment) reply {
	return reply{status: http.StatusAccepted, response: api_v1_deploy.Response{Message: "deployment started", Deployment: &d}}
}

func found(d api_v1.Deployment) reply {
	return reply{status: http.StatusOK, response: api_v1_deploy.Response{Deployment: &d}}
}

func setup(t *testing.T, s *server) (*agentclient.Deployer, *agentclient.Config) {
	s.t = t
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	cfg := agentclient.NewConfig()
	cfg.Command = agentclient.CommandDeploy
	cfg.Server = ts.URL
	cfg.AgentID = agentID
	cfg.AgentKey = "key material"
	cfg.AgentHash = "agent-hash"
	cfg.Owner = "0xowner"
	cfg.PollInterval = time.Millisecond
	cfg.RetryInterval = time.Millisecond
	cfg.Retry = true

	return &agentclient.Deployer{Client: agentclient.NewClient(ts.URL, "secret")}, cfg
}

func deploy(t *testing.T, d *agentclient.Deployer, cfg *agentclient.Config, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	request, err := agentclient.Prepare(cfg)
	require.NoError(t, err)
	return d.Deploy(ctx, cfg, request)
}

func TestDeployWithoutWait(t *testing.T) {
	s := &server{deploys: []reply{accepted(view(deployment.StatusPendingFund, true, ""))}}
	d, cfg := setup(t, s)

	err := deploy(t, d, cfg, time.Second)
	assert.NoError(t, err)
	assert.Equal(t, agentclient.ExitSuccess, agentclient.ErrorExitCode(err))

	require.Len(t, s.requests, 1)
	assert.Equal(t, agentID, s.requests[0].AgentID)
	assert.Equal(t, "key material", s.requests[0].AgentKey)
	assert.Equal(t, "secret", s.headers[0].Get(middleware.PSKHeader))
}

func TestDeployWaitsUntilAlive(t *testing.T) {
	s := &server{
		deploys: []reply{accepted(view(deployment.StatusPendingFund, true, ""))},
		statuses: []reply{
			found(view(deployment.StatusPendingSwap, true, "")),
			found(view(deployment.StatusPendingDeploy, true, "")),
			found(view(deployment.StatusAlive, false, "")),
		},
	}
	d, cfg := setup(t, s)
	cfg.Wait = true

	err := deploy(t, d, cfg, 5*time.Second)
	assert.NoError(t, err)
}

func TestDeployStoppedWithError(t *testing.T) {
	s := &server{
		deploys: []reply{accepted(view(deployment.StatusPendingFund, true, ""))},
		statuses: []reply{
			found(view(deployment.StatusPendingSwap, false, "funding failed: balance too low")),
		},
	}
	d, cfg := setup(t, s)
	cfg.Wait = true

	err := deploy(t, d, cfg, 5*time.Second)
	assert.ErrorContains(t, err, "balance too low")
	assert.Equal(t, agentclient.ExitDeploymentError, agentclient.ErrorExitCode(err))
}

func TestDeployRetriesUnavailableServer(t *testing.T) {
	s := &server{
		deploys: []reply{
			{status: http.StatusBadGateway, response: api_v1_deploy.Response{Message: "unable to derive agent account"}},
			accepted(view(deployment.StatusPendingFund, true, "")),
		},
	}
	d, cfg := setup(t, s)

	err := deploy(t, d, cfg, 5*time.Second)
	assert.NoError(t, err)
	assert.Len(t, s.requests, 2)

	t.Run("without retry the first error is final", func(t *testing.T) {
		s := &server{
			deploys: []reply{{status: http.StatusBadGateway}},
		}
		d, cfg := setup(t, s)
		cfg.Retry = false

		err := deploy(t, d, cfg, 5*time.Second)
		assert.Equal(t, agentclient.ExitNoDeployment, agentclient.ErrorExitCode(err))
		assert.Len(t, s.requests, 1)
	})
}

func TestDeployRejected(t *testing.T) {
	s := &server{
		deploys: []reply{{status: http.StatusConflict, response: api_v1_deploy.Response{Message: "agent is deployed by another owner"}}},
	}
	d, cfg := setup(t, s)

	err := deploy(t, d, cfg, 5*time.Second)
	assert.ErrorContains(t, err, "agent is deployed by another owner")
	assert.Equal(t, agentclient.ExitRejected, agentclient.ErrorExitCode(err))

	var httpErr *agentclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusConflict, httpErr.StatusCode)
	assert.Len(t, s.requests, 1)
}

func TestDeployTimeout(t *testing.T) {
	s := &server{
		deploys:  []reply{accepted(view(deployment.StatusPendingStart, true, ""))},
		statuses: []reply{found(view(deployment.StatusPendingStart, true, ""))},
	}
	d, cfg := setup(t, s)
	cfg.Wait = true

	err := deploy(t, d, cfg, 50*time.Millisecond)
	assert.Equal(t, agentclient.ExitTimeout, agentclient.ErrorExitCode(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFinished(t *testing.T) {
	stale := view(deployment.StatusPendingSwap, false, "funding failed")
	newer := stale
	newer.LastUpdate++

	for _, tc := range []struct {
		name        string
		accepted    api_v1.Deployment
		current     api_v1.Deployment
		seenRunning bool
		done        bool
		failed      bool
	}{
		{name: "alive", accepted: stale, current: view(deployment.StatusAlive, false, ""), done: true},
		{name: "still running", accepted: stale, current: view(deployment.StatusPendingSwap, true, "funding failed")},
		{name: "not started yet", accepted: stale, current: view(deployment.StatusPendingSwap, false, "")},
		{name: "error from an earlier run", accepted: stale, current: stale},
		{name: "error after the run was seen", accepted: stale, current: stale, seenRunning: true, done: true, failed: true},
		{name: "newer error", accepted: stale, current: newer, done: true, failed: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			done, err := agentclient.Finished(tc.accepted, tc.current, tc.seenRunning)
			assert.Equal(t, tc.done, done)
			if tc.failed {
				assert.Equal(t, agentclient.ExitDeploymentError, agentclient.ErrorExitCode(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPrepareEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY: sk-file\nLOG_LEVEL: debug\n"), 0o600))

	cfg := agentclient.NewConfig()
	cfg.AgentID = agentID
	cfg.EnvFile = path
	cfg.Env = []string{"OPENAI_API_KEY=sk-flag", "EMPTY", "=ignored"}

	request, err := agentclient.Prepare(cfg)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"OPENAI_API_KEY": "sk-flag",
		"LOG_LEVEL":      "debug",
		"EMPTY":          "",
	}, request.EnvVariables)

	t.Run("missing env file", func(t *testing.T) {
		cfg.EnvFile = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := agentclient.Prepare(cfg)
		assert.Equal(t, agentclient.ExitInvocationFailure, agentclient.ErrorExitCode(err))
	})
}

func TestStatusAndList(t *testing.T) {
	s := &server{statuses: []reply{found(view(deployment.StatusPendingDeploy, true, ""))}}
	d, _ := setup(t, s)

	current, err := d.Client.Status(context.Background(), agentID)
	require.NoError(t, err)
	assert.Equal(t, deployment.StatusPendingDeploy, current.Status)

	_, err = d.Client.Status(context.Background(), "unknown")
	var httpErr *agentclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.False(t, httpErr.Retriable())

	deployments, err := d.Client.List(context.Background(), "0xowner")
	require.NoError(t, err)
	require.Len(t, deployments, 1)
	assert.Equal(t, []string{"owner=0xowner"}, s.queries)

	buf := &bytes.Buffer{}
	require.NoError(t, agentclient.PrintDeployments(buf, deployments))
	assert.Contains(t, buf.String(), "STATUS")
	assert.Contains(t, buf.String(), agentID)
	assert.Contains(t, buf.String(), "2023-11-14T22:13:20Z")
}

func TestValidate(t *testing.T) {
	valid := func() *agentclient.Config {
		cfg := agentclient.NewConfig()
		cfg.Command = agentclient.CommandDeploy
		cfg.Server = agentclient.DefaultServer
		cfg.AgentID = agentID
		cfg.AgentKey = "key"
		cfg.AgentHash = "hash"
		cfg.Owner = "0xowner"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	for _, tc := range []struct {
		name   string
		modify func(*agentclient.Config)
		err    error
	}{
		{name: "no command", modify: func(c *agentclient.Config) { c.Command = "" }, err: agentclient.ErrCommandRequired},
		{name: "no server", modify: func(c *agentclient.Config) { c.Server = "" }, err: agentclient.ErrServerRequired},
		{name: "no key", modify: func(c *agentclient.Config) { c.AgentKey = "" }, err: agentclient.ErrAgentKeyRequired},
		{name: "no hash", modify: func(c *agentclient.Config) { c.AgentHash = "" }, err: agentclient.ErrAgentHashRequired},
		{name: "no owner", modify: func(c *agentclient.Config) { c.Owner = "" }, err: agentclient.ErrOwnerRequired},
		{name: "no id", modify: func(c *agentclient.Config) { c.AgentID = "" }, err: agentclient.ErrAgentIDRequired},
		{name: "status without id", modify: func(c *agentclient.Config) {
			c.Command = agentclient.CommandStatus
			c.AgentID = ""
		}, err: agentclient.ErrAgentIDRequired},
		{name: "list needs nothing else", modify: func(c *agentclient.Config) {
			c.Command = agentclient.CommandList
			c.AgentID = ""
			c.AgentKey = ""
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
}

func TestExitCodeZero(t *testing.T) {
	assert.Equal(t, agentclient.ExitCode(0), agentclient.ExitSuccess)
	assert.Equal(t, agentclient.ExitInternalError, agentclient.ErrorExitCode(context.Canceled))
}
