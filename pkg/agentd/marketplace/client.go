package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/money"
)

const (
	pathInstances        = "/api/v0/instances"
	pathPrice            = "/api/v0/price/"
	pathExecutionsList   = "/about/executions/list"
	pathAllocationNotify = "/control/allocation/notify"
)

type httpClient struct {
	apiURL string
	client *http.Client
}

var _ Client = &httpClient{}

func NewClient(apiURL string) Client {
	return &httpClient{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		client: http.DefaultClient,
	}
}

type payment struct {
	Type     string `json:"type"`
	Receiver string `json:"receiver"`
}

type nodeRequirements struct {
	NodeHash string `json:"node_hash"`
}

type requirements struct {
	Node nodeRequirements `json:"node"`
}

type allocationBody struct {
	AllocationRequest
	Hypervisor   string       `json:"hypervisor"`
	Payment      payment      `json:"payment"`
	Requirements requirements `json:"requirements"`
}

type allocationResponse struct {
	ItemHash string `json:"item_hash"`
	Status   string `json:"status"`
}

func (c *httpClient) CreateAllocation(ctx context.Context, request AllocationRequest) (string, error) {
	body := allocationBody{
		AllocationRequest: request,
		Hypervisor:        "qemu",
		Payment: payment{
			Type:     "superfluid",
			Receiver: request.Target.Receiver,
		},
		Requirements: requirements{
			Node: nodeRequirements{NodeHash: request.Target.Hash},
		},
	}

	resp := &allocationResponse{}
	err := c.do(ctx, http.MethodPost, c.apiURL+pathInstances, body, resp)
	if err != nil {
		return "", fmt.Errorf("create instance: %w", err)
	}
	if len(resp.ItemHash) == 0 {
		return "", fmt.Errorf("create instance: no item hash returned (status '%s')", resp.Status)
	}

	return resp.ItemHash, nil
}

type priceResponse struct {
	RequiredTokens json.Number `json:"required_tokens"`
}

func (c *httpClient) Price(ctx context.Context, handle string) (math.LegacyDec, math.LegacyDec, error) {
	resp := &priceResponse{}
	err := c.do(ctx, http.MethodGet, c.apiURL+pathPrice+url.PathEscape(handle), nil, resp)
	if err != nil {
		return math.LegacyDec{}, math.LegacyDec{}, fmt.Errorf("get price of instance %s: %w", handle, err)
	}

	total, err := money.FormatCost(resp.RequiredTokens.String())
	if err != nil {
		return math.LegacyDec{}, math.LegacyDec{}, fmt.Errorf("get price of instance %s: %w", handle, err)
	}

	community, operator := money.SplitPrice(total)
	return community, operator, nil
}

type notifyBody struct {
	Instance string `json:"instance"`
}

func (c *httpClient) NotifyFunded(ctx context.Context, nodeURL, handle string) (bool, error) {
	err := c.do(ctx, http.MethodPost, strings.TrimSuffix(nodeURL, "/")+pathAllocationNotify, notifyBody{Instance: handle}, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

type execution struct {
	Networking struct {
		IPv6 string `json:"ipv6"`
	} `json:"networking"`
}

func (c *httpClient) ResolveAddress(ctx context.Context, nodeURL, handle string) (string, error) {
	executions := make(map[string]execution)
	err := c.do(ctx, http.MethodGet, strings.TrimSuffix(nodeURL, "/")+pathExecutionsList, nil, &executions)
	if err != nil {
		return "", fmt.Errorf("list executions on %s: %w", nodeURL, err)
	}

	exec, ok := executions[handle]
	if !ok || len(exec.Networking.IPv6) == 0 {
		return "", nil
	}

	return InstanceAddress(exec.Networking.IPv6)
}

// InstanceAddress derives the guest address from the network interface a compute node
// reports for an execution. The guest sits on the address after the host side of the link.
func InstanceAddress(iface string) (string, error) {
	var addr netip.Addr
	if strings.Contains(iface, "/") {
		prefix, err := netip.ParsePrefix(iface)
		if err != nil {
			return "", fmt.Errorf("parse execution network '%s': %w", iface, err)
		}
		addr = prefix.Addr()
	} else {
		var err error
		addr, err = netip.ParseAddr(iface)
		if err != nil {
			return "", fmt.Errorf("parse execution address '%s': %w", iface, err)
		}
	}

	next := addr.Next()
	if !next.IsValid() {
		return "", fmt.Errorf("execution address '%s' has no successor", iface)
	}
	return next.String(), nil
}

func (c *httpClient) do(ctx context.Context, method, target string, body, respBody interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if respBody == nil {
		return nil
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	return decoder.Decode(respBody)
}
