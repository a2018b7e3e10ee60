// Package leads defines the lead record and its persistence interface.
// The dialogue engine never touches leads directly; all mutation goes
// through Store.Update.
package leads

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lead id does not exist.
	ErrNotFound = errors.New("lead not found")
)

// Lead is a contact captured from the intake form, later annotated with
// call results.
type Lead struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	CreatedAt     time.Time `json:"created_at"`
	CallScheduled bool      `json:"call_scheduled"`
	CallCompleted bool      `json:"call_completed"`
	Interested    bool      `json:"interested"`
	Transcript    string    `json:"transcript,omitempty"`
}

// Update describes a partial mutation of a lead. Nil fields are left
// untouched.
type Update struct {
	CallScheduled *bool
	CallCompleted *bool
	Interested    *bool
	Transcript    *string
}

// Store persists leads.
//
// Implementations must serialize updates per lead id: concurrent Update
// calls for the same lead must not interleave read-modify-write.
type Store interface {
	Create(ctx context.Context, name, email, phone string) (int64, error)
	Get(ctx context.Context, id int64) (*Lead, error)
	Update(ctx context.Context, id int64, update Update) error
	List(ctx context.Context) ([]*Lead, error)
}

// Bool returns a pointer to b, for building Update values.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for building Update values.
func String(s string) *string { return &s }
