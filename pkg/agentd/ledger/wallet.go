package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"cosmossdk.io/math"
	"github.com/nais/agentdeploy/pkg/agentd/money"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Wallet is a client of the wallet service, which holds key derivation,
// signing and swap routing on behalf of agentd.
type Wallet struct {
	url        string
	httpClient *http.Client
	gate       FundsGate
	limit      rate.Limit
}

func NewWallet(serviceURL string, gate FundsGate, requestsPerSecond float64) *Wallet {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if gate == nil {
		gate = OpenGate{}
	}
	return &Wallet{
		url:        strings.TrimSuffix(serviceURL, "/"),
		httpClient: http.DefaultClient,
		gate:       gate,
		limit:      limit,
	}
}

type accountRequest struct {
	Key string `json:"key"`
}

type accountResponse struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// Account derives the account belonging to the given key material.
func (w *Wallet) Account(ctx context.Context, keyMaterial string) (Account, error) {
	resp := &accountResponse{}
	err := w.do(ctx, nil, http.MethodPost, "/v1/accounts", accountRequest{Key: keyMaterial}, resp)
	if err != nil {
		return nil, fmt.Errorf("derive account: %w", err)
	}
	if len(resp.Address) == 0 || len(resp.PrivateKey) == 0 {
		return nil, fmt.Errorf("derive account: wallet service returned an incomplete account")
	}

	return &walletAccount{
		wallet:     w,
		address:    resp.Address,
		privateKey: resp.PrivateKey,
		limiter:    rate.NewLimiter(w.limit, 1),
	}, nil
}

func (w *Wallet) do(ctx context.Context, limiter *rate.Limiter, method, path string, body, respBody interface{}) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.url+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("wallet service: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	if respBody == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(respBody)
}

type walletAccount struct {
	wallet     *Wallet
	address    string
	privateKey string
	limiter    *rate.Limiter
}

var _ Account = &walletAccount{}

func (a *walletAccount) Address() string {
	return a.address
}

func (a *walletAccount) PrivateKey() string {
	return a.privateKey
}

func (a *walletAccount) path(format string, args ...interface{}) string {
	return "/v1/accounts/" + url.PathEscape(a.address) + fmt.Sprintf(format, args...)
}

type amountResponse struct {
	Balance  string `json:"balance,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Received string `json:"received,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`
}

func (a *walletAccount) Balance(ctx context.Context, token Token) (math.LegacyDec, error) {
	resp := &amountResponse{}
	err := a.wallet.do(ctx, a.limiter, http.MethodGet, a.path("/balance?token=%s", url.QueryEscape(string(token))), nil, resp)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("get %s balance: %w", token, err)
	}
	return money.FormatCost(resp.Balance)
}

type flowRequest struct {
	Receiver string `json:"receiver"`
	Rate     string `json:"rate"`
}

func (a *walletAccount) CreateFlow(ctx context.Context, receiver string, ratePerSecond math.LegacyDec) (string, error) {
	if err := a.wallet.gate.CanTransact(ctx, a); err != nil {
		return "", err
	}

	resp := &amountResponse{}
	req := flowRequest{
		Receiver: receiver,
		Rate:     ratePerSecond.String(),
	}
	err := a.wallet.do(ctx, a.limiter, http.MethodPost, a.path("/flows"), req, resp)
	if err != nil {
		return "", fmt.Errorf("create flow to %s: %w", receiver, err)
	}

	log.WithField("wallet_address", a.address).Debugf("Flow of %s/s to %s created with transaction %s", ratePerSecond, receiver, resp.TxHash)
	return resp.TxHash, nil
}

func (a *walletAccount) Quote(ctx context.Context, want math.LegacyDec) (math.LegacyDec, error) {
	resp := &amountResponse{}
	query := fmt.Sprintf("/v1/quote?from=%s&to=%s&amount=%s", TokenFallback, TokenSettlement, url.QueryEscape(want.String()))
	err := a.wallet.do(ctx, a.limiter, http.MethodGet, query, nil, resp)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("quote %s %s: %w", want, TokenSettlement, err)
	}
	return money.FormatCost(resp.Amount)
}

type convertRequest struct {
	From   Token  `json:"from"`
	To     Token  `json:"to"`
	Amount string `json:"amount"`
}

func (a *walletAccount) Convert(ctx context.Context, amount math.LegacyDec) (math.LegacyDec, error) {
	if err := a.wallet.gate.CanTransact(ctx, a); err != nil {
		return math.LegacyDec{}, err
	}

	resp := &amountResponse{}
	req := convertRequest{
		From:   TokenFallback,
		To:     TokenSettlement,
		Amount: amount.String(),
	}
	err := a.wallet.do(ctx, a.limiter, http.MethodPost, a.path("/convert"), req, resp)
	if err != nil {
		return math.LegacyDec{}, fmt.Errorf("convert %s %s: %w", amount, TokenFallback, err)
	}

	log.WithField("wallet_address", a.address).Infof("Converted %s %s with transaction %s", amount, TokenFallback, resp.TxHash)
	return money.FormatCost(resp.Received)
}
