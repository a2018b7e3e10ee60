package notify

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/leadline/internal/leads"
)

// SMSSender sends a text message; satisfied by the telephony client.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SMSNotifier alerts the operator's phone via SMS.
type SMSNotifier struct {
	sender     SMSSender
	adminPhone string
	timeout    time.Duration
}

// NewSMSNotifier creates an SMS notifier targeting adminPhone.
func NewSMSNotifier(sender SMSSender, adminPhone string) (*SMSNotifier, error) {
	if sender == nil {
		return nil, errors.New("notify: sms sender is required")
	}
	if adminPhone == "" {
		return nil, errors.New("notify: admin phone is required")
	}
	return &SMSNotifier{
		sender:     sender,
		adminPhone: adminPhone,
		timeout:    10 * time.Second,
	}, nil
}

// Name identifies this notifier in logs.
func (n *SMSNotifier) Name() string { return "sms" }

// Notify texts the alert to the admin phone.
func (n *SMSNotifier) Notify(ctx context.Context, lead *leads.Lead) error {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.sender.SendSMS(ctx, n.adminPhone, alertText(lead))
}
