package orchestrator

import (
	"time"

	"cosmossdk.io/math"
)

// Policy holds the fixed limits and delays of the deployment steps.
type Policy struct {
	// Payment streams must be covered for this long before they are opened.
	FundingWindow time.Duration
	// Absolute amount of settlement tokens required on top of the funding window.
	FundingBuffer math.LegacyDec
	// Delay between opening the operator and the community payment stream.
	FlowInterval         time.Duration
	ConnectivityAttempts int
	ConnectivityTimeout  time.Duration
	// Delay after the instance first answers, before its shell accepts connections.
	SettleDelay       time.Duration
	ProvisionAttempts int
	// Upper bound for one upload and run of the install script.
	ProvisionTimeout time.Duration
	// Upper bound for each call to a remote collaborator. Zero disables the bound.
	CallTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		FundingWindow:        4 * time.Hour,
		FundingBuffer:        math.LegacyNewDecWithPrec(1, 1),
		FlowInterval:         10 * time.Second,
		ConnectivityAttempts: 30,
		ConnectivityTimeout:  5 * time.Second,
		SettleDelay:          5 * time.Second,
		ProvisionAttempts:    5,
		ProvisionTimeout:     30 * time.Minute,
		CallTimeout:          2 * time.Minute,
	}
}
