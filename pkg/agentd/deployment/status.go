package deployment

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusPendingFund       Status = "PENDING_FUND"
	StatusPendingSwap       Status = "PENDING_SWAP"
	StatusPendingAllocation Status = "PENDING_ALLOCATION"
	StatusPendingStart      Status = "PENDING_START"
	StatusPendingDeploy     Status = "PENDING_DEPLOY"
	StatusAlive             Status = "ALIVE"
)

// Forward order of the provisioning pipeline.
var order = []Status{
	StatusPendingFund,
	StatusPendingSwap,
	StatusPendingAllocation,
	StatusPendingStart,
	StatusPendingDeploy,
	StatusAlive,
}

func Statuses() []Status {
	statuses := make([]Status, len(order))
	copy(statuses, order)
	return statuses
}

func ParseStatus(s string) (Status, error) {
	for _, status := range order {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown deployment status '%s'", s)
}

func (s Status) String() string {
	return string(s)
}

// Index returns the position of the status in the pipeline, or -1 if the status is unknown.
func (s Status) Index() int {
	for i, status := range order {
		if status == s {
			return i
		}
	}
	return -1
}

func (s Status) Valid() bool {
	return s.Index() >= 0
}

// Next returns the successor of s. The terminal status returns itself and false.
func (s Status) Next() (Status, bool) {
	i := s.Index()
	if i < 0 || i == len(order)-1 {
		return s, false
	}
	return order[i+1], true
}

// AtLeast reports whether s has reached other in the pipeline.
func (s Status) AtLeast(other Status) bool {
	return s.Index() >= other.Index()
}

func (s Status) Terminal() bool {
	return s == StatusAlive
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	status, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = status
	return nil
}
