package onboarding

import (
	"errors"
	"fmt"
)

// ErrNoAuthority marks role or nickname changes the bot is not allowed to make.
var ErrNoAuthority = errors.New("insufficient authority over member")

// ValidationError is malformed member input. It never leaves the machine;
// the member gets a correction prompt instead.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError means the transition was not committed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AuthorityError is a skipped role or nickname change.
type AuthorityError struct {
	GuildID string
	Action  string
	Err     error
}

func (e *AuthorityError) Error() string {
	if e.GuildID == "" {
		return fmt.Sprintf("%s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("%s in guild %s: %v", e.Action, e.GuildID, e.Err)
}

func (e *AuthorityError) Unwrap() error { return e.Err }

// DeliveryError is an outbound message that did not arrive.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
