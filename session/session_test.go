package session

import (
	"encoding/json"
	"testing"
)

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{Pending, Confirmed, Finalized, Failed, Expired} {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %v: %v", s, err)
		}
		var got Status
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != s {
			t.Errorf("round trip %v = %v", s, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		want Status
		ok   bool
	}{
		{"pending", Pending, true},
		{"confirmed", Confirmed, true},
		{"finalized", Finalized, true},
		{"failed", Failed, true},
		{"expired", Expired, true},
		{"bogus", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.name)
		if ok != tt.ok {
			t.Errorf("ParseStatus(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{Pending, false},
		{Confirmed, false},
		{Finalized, true},
		{Failed, true},
		{Expired, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%v.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{Pending, Confirmed, true},
		{Pending, Finalized, true},
		{Pending, Failed, true},
		{Pending, Expired, true},
		{Confirmed, Finalized, true},
		{Confirmed, Pending, false}, // no falling back
		{Finalized, Failed, false},  // terminal is terminal
		{Failed, Pending, false},
		{Expired, Confirmed, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%v -> %v = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestDonationEventType(t *testing.T) {
	tests := []struct {
		status Status
		want   EventType
	}{
		{Pending, EventDonationPending},
		{Confirmed, EventDonationConfirmed},
		{Finalized, EventDonationFinalized},
		{Failed, EventDonationFailed},
		{Expired, EventDonationExpired},
	}
	for _, tt := range tests {
		got := DonationEventType(tt.status)
		if got != tt.want {
			t.Errorf("DonationEventType(%v) = %q, want %q", tt.status, got, tt.want)
		}
		if !KnownEventType(got) {
			t.Errorf("DonationEventType(%v) = %q not in known set", tt.status, got)
		}
	}
}

func TestKnownEventType(t *testing.T) {
	for _, kind := range EventTypes() {
		if !KnownEventType(kind) {
			t.Errorf("EventTypes() entry %q not known", kind)
		}
	}
	if KnownEventType("donation_teleported") {
		t.Error("unknown kind reported as known")
	}
}
