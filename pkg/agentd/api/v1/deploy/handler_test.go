package api_v1_deploy_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cosmossdk.io/math"
	"github.com/go-chi/chi"
	"github.com/nais/agentdeploy/pkg/agentd/api"
	api_v1_deploy "github.com/nais/agentdeploy/pkg/agentd/api/v1/deploy"
	"github.com/nais/agentdeploy/pkg/agentd/artifact"
	"github.com/nais/agentdeploy/pkg/agentd/database"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/agentd/keys"
	"github.com/nais/agentdeploy/pkg/agentd/ledger"
	"github.com/nais/agentdeploy/pkg/agentd/middleware"
	"github.com/nais/agentdeploy/pkg/agentd/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	agentID = "8d2bd8a4-6a3f-4e39-9d31-2c6f1e6f6a11"
	owner   = "0xowner"
)

type wallet struct {
	t     *testing.T
	calls int
}

func (w *wallet) Account(_ context.Context, keyMaterial string) (ledger.Account, error) {
	w.calls++
	if keyMaterial == "broken" {
		return nil, fmt.Errorf("wallet service unavailable")
	}
	account := ledger.NewMockAccount(w.t)
	account.On("Address").Return("0xagent").Maybe()
	return account, nil
}

type fixture struct {
	store    *database.Memory
	registry *orchestrator.Registry
	wallet   *wallet
	router   chi.Router
}

func newFixture(t *testing.T, psk []string) *fixture {
	store := database.NewMemory()

	keyStore := keys.NewMockStore(t)
	keyStore.On("Recover", mock.Anything).Return(keys.Keypair{Public: "ssh-rsa AAAA"}, nil).Maybe()
	keyStore.On("Remove", mock.Anything).Return(nil).Maybe()

	artifacts := artifact.NewMockStore(t)
	artifacts.On("Resolve", mock.Anything, mock.Anything).Return(nil, artifact.ErrNotFound).Maybe()

	registry := orchestrator.NewRegistry(context.Background(), orchestrator.Config{
		Store:     store,
		Keys:      keyStore,
		Artifacts: artifacts,
		Policy:    orchestrator.DefaultPolicy(),
	})
	t.Cleanup(registry.Wait)

	f := &fixture{
		store:    store,
		registry: registry,
		wallet:   &wallet{t: t},
	}

	cfg := api.Config{
		DeployHandler: &api_v1_deploy.Handler{
			Registry:       registry,
			Store:          store,
			Wallet:         f.wallet,
			RequiredTokens: math.LegacyNewDec(10),
		},
		MetricsPath: "/metrics",
	}
	if len(psk) > 0 {
		cfg.PSKValidator = middleware.PskValidatorMiddleware(psk)
	}
	f.router = api.New(cfg)
	return f
}

func (f *fixture) do(method, path string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, api_v1_deploy.Response) {
	var payload []byte
	switch b := body.(type) {
	case nil:
	case string:
		payload = []byte(b)
	default:
		payload, _ = json.Marshal(b)
	}

	request := httptest.NewRequest(method, path, bytes.NewReader(payload))
	request.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, request)

	response := api_v1_deploy.Response{}
	json.Unmarshal(recorder.Body.Bytes(), &response)
	return recorder, response
}

func deployRequest() api_v1_deploy.Request {
	return api_v1_deploy.Request{
		AgentID:      agentID,
		AgentKey:     "key material",
		AgentHash:    "agent-hash",
		Owner:        owner,
		Name:         "my agent",
		EnvVariables: map[string]string{"OPENAI_API_KEY": "sk-test"},
	}
}

func TestDeployNewAgent(t *testing.T) {
	f := newFixture(t, nil)

	recorder, response := f.do(http.MethodPost, "/internal/api/v1/deploy", deployRequest(), nil)
	require.Equal(t, http.StatusAccepted, recorder.Code, recorder.Body.String())
	assert.Equal(t, "deployment started", response.Message)
	require.NotNil(t, response.Deployment)
	assert.Equal(t, agentID, response.Deployment.ID)
	assert.Equal(t, "my agent", response.Deployment.Name)
	assert.Equal(t, "0xagent", response.Deployment.WalletAddress)
	assert.Equal(t, deployment.StatusPendingFund, response.Deployment.Status)
	assert.True(t, response.Deployment.RequiredTokens.Equal(math.LegacyNewDec(10)))

	failure := <-f.registry.Failures()
	f.registry.Wait()
	assert.ErrorIs(t, failure.Err, orchestrator.ErrAllocation)

	records, err := f.store.Fetch(context.Background(), database.Filter{IDs: []string{agentID}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{agentID, owner}, records[0].Tags)

	recorder, response = f.do(http.MethodGet, "/internal/api/v1/deployment/"+agentID, nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	require.NotNil(t, response.Deployment)
	assert.Equal(t, deployment.StatusPendingFund, response.Deployment.Status)
	assert.Contains(t, response.Deployment.LastError, "instance allocation failed")

	t.Run("second request resumes the registered deployment", func(t *testing.T) {
		recorder, response := f.do(http.MethodPost, "/internal/api/v1/deploy", deployRequest(), nil)
		assert.Equal(t, http.StatusAccepted, recorder.Code)
		assert.Equal(t, "deployment resumed", response.Message)
		assert.Equal(t, 1, f.wallet.calls)

		<-f.registry.Failures()
		f.registry.Wait()
	})
}

func TestDeployStoredAgent(t *testing.T) {
	f := newFixture(t, nil)

	record := deployment.New(agentID, "agent", owner, "0xagent", "agent-hash", math.LegacyNewDec(10))
	record.Status = deployment.StatusAlive
	record.InstanceHash = "instance"
	record.InstanceIP = "fd00::2"
	_, err := f.store.Create(context.Background(), record)
	require.NoError(t, err)

	recorder, response := f.do(http.MethodPost, "/internal/api/v1/deploy", deployRequest(), nil)
	require.Equal(t, http.StatusAccepted, recorder.Code, recorder.Body.String())
	assert.Equal(t, deployment.StatusAlive, response.Deployment.Status)
	assert.Equal(t, "agent", response.Deployment.Name)
	f.registry.Wait()

	t.Run("other owners are rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.store.Create(context.Background(), record)
		require.NoError(t, err)

		request := deployRequest()
		request.Owner = "0xsomeoneelse"
		recorder, _ := f.do(http.MethodPost, "/internal/api/v1/deploy", request, nil)
		assert.Equal(t, http.StatusConflict, recorder.Code)
		assert.Empty(t, f.registry.List())
	})
}

func TestDeployRejectsInvalidRequests(t *testing.T) {
	f := newFixture(t, nil)

	for _, tc := range []struct {
		name    string
		body    interface{}
		headers map[string]string
		status  int
	}{
		{name: "not json", body: "{", status: http.StatusBadRequest},
		{name: "agent id is not a uuid", body: func() api_v1_deploy.Request {
			r := deployRequest()
			r.AgentID = "agent"
			return r
		}(), status: http.StatusBadRequest},
		{name: "missing owner", body: func() api_v1_deploy.Request {
			r := deployRequest()
			r.Owner = ""
			return r
		}(), status: http.StatusBadRequest},
		{name: "wallet unavailable", body: func() api_v1_deploy.Request {
			r := deployRequest()
			r.AgentKey = "broken"
			return r
		}(), status: http.StatusBadGateway},
		{name: "wrong content type", body: deployRequest(), headers: map[string]string{"Content-Type": "text/plain"}, status: http.StatusUnsupportedMediaType},
	} {
		t.Run(tc.name, func(t *testing.T) {
			recorder, _ := f.do(http.MethodPost, "/internal/api/v1/deploy", tc.body, tc.headers)
			assert.Equal(t, tc.status, recorder.Code, recorder.Body.String())
		})
	}

	assert.Empty(t, f.registry.List())
}

func TestStatusNotFound(t *testing.T) {
	f := newFixture(t, nil)

	recorder, response := f.do(http.MethodGet, "/internal/api/v1/deployment/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "deployment not found", response.Message)
}

func TestList(t *testing.T) {
	f := newFixture(t, nil)

	for i, o := range []string{owner, "0xother", owner} {
		record := deployment.New(fmt.Sprintf("agent-%d", i), "agent", o, "0xagent", "agent-hash", math.LegacyNewDec(10))
		_, err := f.store.Create(context.Background(), record)
		require.NoError(t, err)
	}

	recorder, response := f.do(http.MethodGet, "/internal/api/v1/deployments?owner="+owner, nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, response.Deployments, 2)
	assert.Equal(t, "agent-0", response.Deployments[0].ID)
	assert.Equal(t, "agent-2", response.Deployments[1].ID)

	_, response = f.do(http.MethodGet, "/internal/api/v1/deployments", nil, nil)
	assert.Len(t, response.Deployments, 3)
}

func TestPreSharedKey(t *testing.T) {
	f := newFixture(t, []string{"frontend"})

	recorder, _ := f.do(http.MethodGet, "/internal/api/v1/deployments", nil, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder, _ = f.do(http.MethodGet, "/internal/api/v1/deployments", nil, map[string]string{middleware.PSKHeader: "frontend"})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, _ = f.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
