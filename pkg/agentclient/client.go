package agentclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	api_v1 "github.com/nais/agentdeploy/pkg/agentd/api/v1"
	api_v1_deploy "github.com/nais/agentdeploy/pkg/agentd/api/v1/deploy"
	"github.com/nais/agentdeploy/pkg/agentd/middleware"
)

const apiPrefix = "/internal/api/v1"

// HTTPError is a response from agentd outside the 2xx range.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (err *HTTPError) Error() string {
	if len(err.Message) == 0 {
		return fmt.Sprintf("agentd responded with %d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}
	return fmt.Sprintf("agentd responded with %d %s: %s", err.StatusCode, http.StatusText(err.StatusCode), err.Message)
}

// Retriable reports whether the request may succeed if sent again.
func (err *HTTPError) Retriable() bool {
	switch err.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Client talks to the agentd HTTP API.
type Client struct {
	Server     string
	PSK        string
	HTTPClient *http.Client
}

func NewClient(server, psk string) *Client {
	return &Client{
		Server:     strings.TrimSuffix(server, "/"),
		PSK:        psk,
		HTTPClient: http.DefaultClient,
	}
}

// Deploy submits a deployment request and returns the accepted deployment along with the server message.
func (c *Client) Deploy(ctx context.Context, request api_v1_deploy.Request) (*api_v1.Deployment, string, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, "", fmt.Errorf("encode request: %w", err)
	}

	response, err := c.do(ctx, http.MethodPost, apiPrefix+"/deploy", bytes.NewReader(payload))
	if err != nil {
		return nil, "", err
	}
	if response.Deployment == nil {
		return nil, response.Message, fmt.Errorf("agentd accepted the request without returning a deployment")
	}
	return response.Deployment, response.Message, nil
}

func (c *Client) Status(ctx context.Context, id string) (*api_v1.Deployment, error) {
	response, err := c.do(ctx, http.MethodGet, apiPrefix+"/deployment/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if response.Deployment == nil {
		return nil, fmt.Errorf("agentd returned no deployment for %s", id)
	}
	return response.Deployment, nil
}

// List returns all deployments, or those of a single owner.
func (c *Client) List(ctx context.Context, owner string) ([]api_v1.Deployment, error) {
	path := apiPrefix + "/deployments"
	if len(owner) > 0 {
		path += "?" + url.Values{"owner": []string{owner}}.Encode()
	}

	response, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return response.Deployments, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*api_v1_deploy.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.Server+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", api_v1.ContentTypeJSON)
	}
	if len(c.PSK) > 0 {
		req.Header.Set(middleware.PSKHeader, c.PSK)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, api_v1.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	response := &api_v1_deploy.Response{}
	decodeErr := json.Unmarshal(data, response)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    response.Message,
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}

	return response, nil
}

// retriable reports whether err is a transport failure or a retriable response.
func retriable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Retriable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
