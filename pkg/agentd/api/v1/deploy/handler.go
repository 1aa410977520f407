package api_v1_deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cosmossdk.io/math"
	"github.com/go-chi/chi"
	"github.com/google/uuid"
	api_v1 "github.com/nais/agentdeploy/pkg/agentd/api/v1"
	"github.com/nais/agentdeploy/pkg/agentd/database"
	"github.com/nais/agentdeploy/pkg/agentd/deployment"
	"github.com/nais/agentdeploy/pkg/agentd/ledger"
	"github.com/nais/agentdeploy/pkg/agentd/middleware"
	"github.com/nais/agentdeploy/pkg/agentd/orchestrator"
	log "github.com/sirupsen/logrus"
)

var StatusCodes = []int{
	http.StatusAccepted,
	http.StatusBadRequest,
	http.StatusConflict,
	http.StatusInternalServerError,
	http.StatusBadGateway,
}

type AccountSource interface {
	Account(ctx context.Context, keyMaterial string) (ledger.Account, error)
}

type Handler struct {
	Registry       *orchestrator.Registry
	Store          database.Store
	Wallet         AccountSource
	RequiredTokens math.LegacyDec
}

type Request struct {
	AgentID      string            `json:"agent_id"`
	AgentKey     string            `json:"agent_key"`
	AgentHash    string            `json:"agent_hash"`
	Owner        string            `json:"owner"`
	Name         string            `json:"name"`
	EnvVariables map[string]string `json:"env_variables"`
}

type Response struct {
	Message     string              `json:"message,omitempty"`
	Deployment  *api_v1.Deployment  `json:"deployment,omitempty"`
	Deployments []api_v1.Deployment `json:"deployments,omitempty"`
}

func (r *Response) render(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", api_v1.ContentTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(r)
}

func (r *Request) validate() error {
	if _, err := uuid.Parse(r.AgentID); err != nil {
		return fmt.Errorf("agent_id must be a UUID: %w", err)
	}
	if len(r.AgentKey) == 0 {
		return fmt.Errorf("no agent_key specified")
	}
	if len(r.AgentHash) == 0 {
		return fmt.Errorf("no agent_hash specified")
	}
	if len(r.Owner) == 0 {
		return fmt.Errorf("no owner specified")
	}
	return nil
}

func (r *Request) LogFields() log.Fields {
	return log.Fields{
		"agent_id":   r.AgentID,
		"agent_hash": r.AgentHash,
		"owner":      r.Owner,
	}
}

// Deploy registers a new agent deployment, or resumes the one already registered.
func (h *Handler) Deploy(w http.ResponseWriter, r *http.Request) {
	var response Response

	logger := log.WithFields(middleware.RequestLogFields(r))
	logger.Tracef("Incoming deployment request")

	data, err := io.ReadAll(io.LimitReader(r.Body, api_v1.MaxBodySize))
	if err != nil {
		response.Message = fmt.Sprintf("unable to read request body: %s", err)
		response.render(w, http.StatusInternalServerError)
		logger.Error(response.Message)
		return
	}

	request := &Request{}
	err = json.Unmarshal(data, request)
	if err == nil {
		err = request.validate()
	}
	if err != nil {
		response.Message = fmt.Sprintf("invalid deployment request: %s", err)
		response.render(w, http.StatusBadRequest)
		logger.Info(response.Message)
		return
	}
	if len(request.Name) == 0 {
		request.Name = request.AgentID
	}
	logger = logger.WithFields(request.LogFields())

	if orchestration := h.Registry.Get(request.AgentID, true); orchestration != nil {
		h.accepted(w, orchestration, "deployment resumed")
		logger.Infof("Resumed deployment")
		return
	}

	account, err := h.Wallet.Account(r.Context(), request.AgentKey)
	if err != nil {
		response.Message = "unable to derive agent account"
		response.render(w, http.StatusBadGateway)
		logger.Errorf("%s: %s", response.Message, err)
		return
	}

	record, err := h.record(r.Context(), request, account)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, errOwnerMismatch) {
			status = http.StatusConflict
		}
		response.Message = err.Error()
		response.render(w, status)
		logger.Errorf("Unable to load deployment record: %s", err)
		return
	}

	orchestration, err := h.Registry.New(record, account, request.EnvVariables)
	switch {
	case errors.Is(err, orchestrator.ErrConflict):
		orchestration = h.Registry.Get(request.AgentID, true)
	case err != nil:
		response.Message = "unable to start deployment"
		response.render(w, http.StatusInternalServerError)
		logger.Errorf("%s: %s", response.Message, err)
		return
	}

	h.accepted(w, orchestration, "deployment started")
	logger.WithField("status", record.Status).Infof("Started deployment")
}

var errOwnerMismatch = errors.New("agent is deployed by another owner")

// record returns the stored deployment record, creating it when the agent has never been deployed.
func (h *Handler) record(ctx context.Context, request *Request, account ledger.Account) (deployment.Record, error) {
	filter := database.Filter{IDs: []string{request.AgentID}}

	records, err := h.Store.Fetch(ctx, filter)
	if err != nil {
		return deployment.Record{}, fmt.Errorf("fetch deployment: %w", err)
	}

	if len(records) == 0 {
		record := deployment.New(request.AgentID, request.Name, request.Owner, account.Address(), request.AgentHash, h.RequiredTokens)
		record.Handle, err = h.Store.Create(ctx, record)
		switch {
		case err == nil:
			return record, nil
		case !errors.Is(err, database.ErrDuplicate):
			return deployment.Record{}, fmt.Errorf("create deployment: %w", err)
		}

		records, err = h.Store.Fetch(ctx, filter)
		if err != nil {
			return deployment.Record{}, fmt.Errorf("fetch deployment: %w", err)
		}
		if len(records) == 0 {
			return deployment.Record{}, fmt.Errorf("deployment %s vanished after create", request.AgentID)
		}
	}

	record := records[0]
	if record.Owner != request.Owner {
		return deployment.Record{}, errOwnerMismatch
	}
	return record, nil
}

func (h *Handler) accepted(w http.ResponseWriter, orchestration *orchestrator.Orchestration, message string) {
	public := api_v1.PublicDeployment(orchestration.Record(), orchestration.Running())
	response := Response{
		Message:    message,
		Deployment: &public,
	}
	response.render(w, http.StatusAccepted)
}

// Status returns one deployment, preferring the live orchestration over the store.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var response Response
	id := chi.URLParam(r, "id")

	if orchestration := h.Registry.Get(id, false); orchestration != nil {
		public := api_v1.PublicDeployment(orchestration.Record(), orchestration.Running())
		response.Deployment = &public
		response.render(w, http.StatusOK)
		return
	}

	records, err := h.Store.Fetch(r.Context(), database.Filter{IDs: []string{id}})
	if err != nil {
		response.Message = "unable to fetch deployment"
		response.render(w, http.StatusBadGateway)
		log.WithFields(middleware.RequestLogFields(r)).Errorf("%s: %s", response.Message, err)
		return
	}
	if len(records) == 0 {
		response.Message = "deployment not found"
		response.render(w, http.StatusNotFound)
		return
	}

	public := api_v1.PublicDeployment(records[0], false)
	response.Deployment = &public
	response.render(w, http.StatusOK)
}

// List returns the stored deployments, optionally filtered by owner.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var response Response

	filter := database.Filter{}
	if owner := r.URL.Query().Get("owner"); len(owner) > 0 {
		filter.Owners = []string{owner}
	}

	records, err := h.Store.Fetch(r.Context(), filter)
	if err != nil {
		response.Message = "unable to list deployments"
		response.render(w, http.StatusBadGateway)
		log.WithFields(middleware.RequestLogFields(r)).Errorf("%s: %s", response.Message, err)
		return
	}

	response.Deployments = make([]api_v1.Deployment, 0, len(records))
	for _, record := range records {
		running := false
		if orchestration := h.Registry.Get(record.ID, false); orchestration != nil {
			record = orchestration.Record()
			running = orchestration.Running()
		}
		response.Deployments = append(response.Deployments, api_v1.PublicDeployment(record, running))
	}
	response.render(w, http.StatusOK)
}
