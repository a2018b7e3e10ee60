// Package notify alerts an operator when a call classifies a lead as
// interested. Notifications are fire-and-forget: failures are logged by
// the caller and never affect call handling.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/leadline/internal/leads"
)

// Notifier delivers an interested-lead alert.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, lead *leads.Lead) error
}

// Multi fans an alert out to several notifiers. Each notifier gets its
// chance even when an earlier one fails; failures are logged and
// swallowed.
type Multi struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewMulti creates a fan-out notifier.
func NewMulti(logger *slog.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{notifiers: notifiers, logger: logger}
}

// Name identifies the fan-out in logs.
func (m *Multi) Name() string { return "multi" }

// Notify delivers the alert to every configured notifier.
func (m *Multi) Notify(ctx context.Context, lead *leads.Lead) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, lead); err != nil {
			m.logger.Warn("admin notification failed",
				"notifier", n.Name(), "lead_id", lead.ID, "error", err)
		}
	}
	return nil
}

// alertText formats the operator-facing alert message.
func alertText(lead *leads.Lead) string {
	return fmt.Sprintf(
		"New interested lead!\n\nName: %s\nEmail: %s\nPhone: %s\n\nThey showed interest during the call.",
		lead.Name, lead.Email, lead.Phone,
	)
}
