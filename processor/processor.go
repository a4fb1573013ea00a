// Package processor is the boundary to the card payment processor. Card
// data is tokenized here and never forwarded to the billing backend.
package processor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/validation"
)

const (
	MsgCardDeclined      = "Your card was declined. Please try a different payment method."
	MsgInsufficientFunds = "Insufficient funds. Please try a different payment method."
	MsgExpiredCard       = "Your card has expired. Please use a different payment method."
	MsgIncorrectCVC      = "Your card's security code is incorrect. Please try again."
	MsgProcessingError   = "An error occurred while processing your payment. Please try again."
	MsgPaymentFailed     = "Payment failed. Please try again or use a different payment method."
	MsgNotLoaded         = "Stripe failed to load. Please refresh the page and try again."
	MsgCheckPaymentInfo  = "Please check your payment information."
)

// Card is raw card input collected by the CLI.
type Card struct {
	Number   string
	ExpMonth string
	ExpYear  string
	CVC      string
}

// Validate runs the local card checks and returns the card brand.
func (c Card) Validate(now time.Time) (string, error) {
	brand, err := validation.CardNumber(c.Number)
	if err != nil {
		return "", err
	}
	if err := validation.Expiry(c.ExpMonth, c.ExpYear, now); err != nil {
		return "", err
	}
	if err := validation.CVV(c.CVC, brand); err != nil {
		return "", err
	}
	return brand, nil
}

// Tokenizer exchanges card details for a processor payment-method id.
type Tokenizer interface {
	Tokenize(ctx context.Context, card Card) (string, error)
}

type StripeTokenizer struct {
	api *client.API
}

// NewStripeTokenizer builds a tokenizer for secretKey. Nil backends use
// the live Stripe endpoints.
func NewStripeTokenizer(secretKey string, backends *stripe.Backends) *StripeTokenizer {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeTokenizer{api: api}
}

func (t *StripeTokenizer) Tokenize(ctx context.Context, card Card) (string, error) {
	month, err := strconv.ParseInt(strings.TrimSpace(card.ExpMonth), 10, 64)
	if err != nil {
		return "", apierror.Validation("Expiry date must be numeric")
	}
	year, err := strconv.ParseInt(strings.TrimSpace(card.ExpYear), 10, 64)
	if err != nil {
		return "", apierror.Validation("Expiry date must be numeric")
	}
	if year < 100 {
		year += 2000
	}

	params := &stripe.PaymentMethodParams{
		Type: stripe.String(string(stripe.PaymentMethodTypeCard)),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(strings.ReplaceAll(card.Number, " ", "")),
			ExpMonth: stripe.Int64(month),
			ExpYear:  stripe.Int64(year),
			CVC:      stripe.String(card.CVC),
		},
	}
	params.Context = ctx

	pm, err := t.api.PaymentMethods.New(params)
	if err != nil {
		return "", Translate(err)
	}
	return pm.ID, nil
}

// Failure is a processor error as reported by Stripe or by Stripe.js in
// the browser.
type Failure struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

// MessageFor maps a processor failure to its fixed user-facing text.
func MessageFor(f Failure) string {
	switch f.Type {
	case "card_error":
		switch {
		case f.Code == "insufficient_funds" || f.DeclineCode == "insufficient_funds":
			return MsgInsufficientFunds
		case f.Code == "card_declined":
			return MsgCardDeclined
		case f.Code == "expired_card":
			return MsgExpiredCard
		case f.Code == "incorrect_cvc":
			return MsgIncorrectCVC
		}
		return MsgProcessingError
	case "validation_error", "invalid_request_error":
		if f.Message != "" {
			return f.Message
		}
		return MsgCheckPaymentInfo
	case "authentication_error":
		return MsgNotLoaded
	}
	return MsgProcessingError
}

// AsError converts a failure into the normalized processor error.
func (f Failure) AsError() *apierror.Error {
	code := f.Code
	if f.DeclineCode != "" {
		code = f.DeclineCode
	}
	return apierror.Processor(code, MessageFor(f), nil)
}

// Translate maps an error returned by stripe-go.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		f := Failure{
			Type:        string(se.Type),
			Code:        string(se.Code),
			DeclineCode: string(se.DeclineCode),
			Message:     se.Msg,
		}
		e := f.AsError()
		e.Status = se.HTTPStatusCode
		e.Err = err
		return e
	}
	if apierror.Is(err, apierror.KindNetwork) {
		return apierror.Normalize(err)
	}
	return apierror.Processor("processing_error", MsgProcessingError, err)
}
