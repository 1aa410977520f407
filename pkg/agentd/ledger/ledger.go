package ledger

import (
	"context"
	"errors"
	"fmt"

	"cosmossdk.io/math"
)

type Token string

const (
	// Currency required by the marketplace for payment streams.
	TokenSettlement Token = "ALEPH"
	// Currency converted into the settlement token when the wallet runs short.
	// Also pays for transaction fees.
	TokenFallback Token = "ETH"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Account is a wallet on the ledger that pays for one agent.
type Account interface {
	Address() string
	PrivateKey() string
	Balance(ctx context.Context, token Token) (math.LegacyDec, error)
	// CreateFlow opens a continuous payment stream and returns the transaction hash.
	CreateFlow(ctx context.Context, receiver string, ratePerSecond math.LegacyDec) (string, error)
	// Quote returns the amount of fallback currency needed to obtain want settlement tokens.
	Quote(ctx context.Context, want math.LegacyDec) (math.LegacyDec, error)
	// Convert swaps the given amount of fallback currency and returns the settlement tokens received.
	Convert(ctx context.Context, amount math.LegacyDec) (math.LegacyDec, error)
}

// FundsGate decides whether an account may submit a transaction.
type FundsGate interface {
	CanTransact(ctx context.Context, account Account) error
}

// MinimumBalanceGate allows transactions while the account holds more than Minimum of Token.
type MinimumBalanceGate struct {
	Token   Token
	Minimum math.LegacyDec
}

var _ FundsGate = &MinimumBalanceGate{}

func (g *MinimumBalanceGate) CanTransact(ctx context.Context, account Account) error {
	balance, err := account.Balance(ctx, g.Token)
	if err != nil {
		return fmt.Errorf("read %s balance: %w", g.Token, err)
	}
	if !balance.GT(g.Minimum) {
		return fmt.Errorf("%w: %s holds %s %s, more than %s required", ErrInsufficientFunds, account.Address(), balance, g.Token, g.Minimum)
	}
	return nil
}

// OpenGate never blocks a transaction.
type OpenGate struct{}

func (OpenGate) CanTransact(context.Context, Account) error {
	return nil
}
