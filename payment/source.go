package payment

import (
	"context"
	"strings"
	"time"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/processor"
)

// CardDetails tokenizes raw card input after local validation.
type CardDetails struct {
	Card      processor.Card
	Tokenizer processor.Tokenizer
	Now       func() time.Time
}

func (c CardDetails) PaymentMethod(ctx context.Context) (string, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if _, err := c.Card.Validate(now()); err != nil {
		return "", err
	}
	if c.Tokenizer == nil {
		return "", apierror.Processor("not_configured", processor.MsgNotLoaded, nil)
	}
	return c.Tokenizer.Tokenize(ctx, c.Card)
}

// PaymentMethodID is a handle the browser already obtained from Stripe.js.
type PaymentMethodID string

func (id PaymentMethodID) PaymentMethod(context.Context) (string, error) {
	if !strings.HasPrefix(string(id), "pm_") {
		return "", apierror.Processor("invalid_payment_method", processor.MsgCheckPaymentInfo, nil)
	}
	return string(id), nil
}

// ProcessorFailure is an error Stripe.js reported in the browser.
type ProcessorFailure processor.Failure

func (f ProcessorFailure) PaymentMethod(context.Context) (string, error) {
	return "", processor.Failure(f).AsError()
}
