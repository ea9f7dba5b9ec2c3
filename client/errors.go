package client

import "errors"

var (
	// ErrNotConnected is returned by Call when the stream channel is not open.
	ErrNotConnected = errors.New("not connected")

	// ErrCallTimeout is returned when no correlated reply arrives in time.
	ErrCallTimeout = errors.New("call timed out")

	// ErrMissingRecipient is returned by CreateDonationSession when the
	// recipient field is empty after trimming.
	ErrMissingRecipient = errors.New("recipient is required")
)
