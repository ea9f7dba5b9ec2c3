// Package session defines the donation session domain types shared by the
// streaming and REST clients. Sessions are owned by the GiveBit backend;
// this package only holds observed snapshots.
package session

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a donation session.
type Status int

const (
	Pending Status = iota
	Confirmed
	Finalized
	Failed
	Expired
)

var statusNames = map[Status]string{
	Pending:   "pending",
	Confirmed: "confirmed",
	Finalized: "finalized",
	Failed:    "failed",
	Expired:   "expired",
}

var statusFromName = map[string]Status{
	"pending":   Pending,
	"confirmed": Confirmed,
	"finalized": Finalized,
	"failed":    Failed,
	"expired":   Expired,
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ParseStatus maps a wire status string to a Status. The second return
// is false for strings outside the known set.
func ParseStatus(name string) (Status, bool) {
	s, ok := statusFromName[name]
	return s, ok
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// IsTerminal reports whether no further status transitions can occur.
func (s Status) IsTerminal() bool {
	return s == Finalized || s == Failed || s == Expired
}

// CanTransitionTo reports whether moving from s to next respects the
// monotonic lifecycle: {pending, confirmed} -> {finalized | failed |
// expired}, with confirmed never falling back to pending.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == Pending {
		return false
	}
	return true
}

// Session is an observed snapshot of one donation session. All fields
// are read-only copies of backend state.
type Session struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"projectId"`
	Donor           string    `json:"donor,omitempty"`
	Recipient       string    `json:"recipient"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	ChainID         int64     `json:"chainId"`
	ContractAddress string    `json:"contractAddress,omitempty"`
	Status          Status    `json:"status"`
	TxHash          string    `json:"txHash,omitempty"`
	Confirmations   int       `json:"confirmations"`
	CreatedAt       time.Time `json:"createdAt"`
}
