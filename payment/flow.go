// Package payment drives one invoice payment from amount entry through
// processor confirmation.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/mohsenfayyazi/billder/apierror"
	"github.com/mohsenfayyazi/billder/apiclient"
	"github.com/mohsenfayyazi/billder/models"
	"github.com/mohsenfayyazi/billder/ratelimit"
	"github.com/mohsenfayyazi/billder/validation"
)

type State string

const (
	Idle              State = "idle"
	CreatingIntent    State = "creating_intent"
	AwaitingCardInput State = "awaiting_card_input"
	Confirming        State = "confirming"
	Succeeded         State = "succeeded"
	Failed            State = "failed"
)

var (
	ErrBusy     = errors.New("payment already in progress")
	ErrNoIntent = errors.New("no payment intent to confirm")
	ErrFinished = errors.New("payment flow already finished")
)

// Backend is the part of the API client a flow needs.
type Backend interface {
	CreatePayment(ctx context.Context, in apiclient.IntentRequest) (apiclient.Intent, error)
	ConfirmPayment(ctx context.Context, intentID, paymentMethodID string) (models.Payment, error)
}

// CardSource yields the processor payment-method handle at confirmation.
type CardSource interface {
	PaymentMethod(ctx context.Context) (string, error)
}

type Flow struct {
	backend   Backend
	invoice   models.Invoice
	limiter   *ratelimit.Limiter
	onSuccess func(models.Payment)
	log       zerolog.Logger

	mu       sync.Mutex
	state    State
	reserved bool
	amount  decimal.Decimal
	intent  apiclient.Intent
	payment models.Payment
	err     *apierror.Error
}

type Option func(*Flow)

// WithLimiter charges one slot of l per Begin.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(f *Flow) { f.limiter = l }
}

// OnSuccess registers the callback invoked with the confirmed payment.
func OnSuccess(fn func(models.Payment)) Option {
	return func(f *Flow) { f.onSuccess = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Flow) { f.log = l }
}

// NewFlow binds a flow to one invoice snapshot.
func NewFlow(backend Backend, invoice models.Invoice, opts ...Option) *Flow {
	f := &Flow{backend: backend, invoice: invoice, state: Idle, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) Invoice() models.Invoice { return f.invoice }

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Err is the last failure surfaced to the payer, or nil.
func (f *Flow) Err() *apierror.Error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Flow) Intent() apiclient.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.intent
}

func (f *Flow) Payment() models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payment
}

// inUse reports whether a request holds the flow: one is calling the
// backend, or the flow was registered and its Begin has not run yet.
func (f *Flow) inUse() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case CreatingIntent, Confirming:
		return true
	case Idle:
		return f.reserved
	}
	return false
}

func (f *Flow) setReserved(v bool) {
	f.mu.Lock()
	f.reserved = v
	f.mu.Unlock()
}

// CanSubmit reports whether amount may be submitted for this invoice.
func (f *Flow) CanSubmit(amount decimal.Decimal) error {
	if !f.invoice.Payable() {
		return apierror.Validation("This invoice has no remaining balance.")
	}
	if err := validation.PaymentAmount(amount, f.invoice.Remaining()); err != nil {
		return apierror.Validation(submitMessage(err, f.invoice))
	}
	return nil
}

func submitMessage(err error, inv models.Invoice) string {
	if errors.Is(err, validation.ErrAmountExceedsBalance) {
		return fmt.Sprintf("Amount cannot exceed remaining balance of %s", models.FormatMoney(inv.Remaining(), inv.CurrencyOrDefault()))
	}
	return "Please enter a valid amount greater than 0"
}

// Begin creates the payment intent for amount.
func (f *Flow) Begin(ctx context.Context, amount decimal.Decimal) error {
	if err := f.CanSubmit(amount); err != nil {
		return err
	}

	f.mu.Lock()
	f.reserved = false
	switch f.state {
	case Idle:
	case Succeeded, Failed:
		f.mu.Unlock()
		return ErrFinished
	default:
		f.mu.Unlock()
		return ErrBusy
	}
	if f.limiter != nil && !f.limiter.Allow() {
		limited := apierror.RateLimited(f.limiter.TimeUntilReset())
		f.err = limited
		f.mu.Unlock()
		return limited
	}
	f.state = CreatingIntent
	f.amount = amount
	f.err = nil
	f.mu.Unlock()

	intent, err := f.backend.CreatePayment(ctx, apiclient.IntentRequest{
		InvoiceID: f.invoice.ID,
		Amount:    amount,
		Currency:  f.invoice.CurrencyOrDefault(),
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state = Idle
		f.err = apierror.Normalize(err)
		f.log.Warn().Err(err).Str("invoice", f.invoice.Reference).Msg("create payment intent failed")
		return f.err
	}
	if intent.Payment.ExternalPaymentID == "" {
		f.state = Idle
		f.err = &apierror.Error{Kind: apierror.KindServer, Message: "Payment intent was not created. Please try again."}
		return f.err
	}
	f.intent = intent
	f.state = AwaitingCardInput
	f.log.Info().
		Str("invoice", f.invoice.Reference).
		Str("intent", intent.Payment.ExternalPaymentID).
		Str("amount", amount.StringFixed(2)).
		Msg("payment intent created")
	return nil
}

// Confirm tokenizes the card through src and confirms the intent with the
// backend.
func (f *Flow) Confirm(ctx context.Context, src CardSource) error {
	f.mu.Lock()
	switch f.state {
	case AwaitingCardInput:
	case Idle:
		f.mu.Unlock()
		return ErrNoIntent
	case Succeeded, Failed:
		f.mu.Unlock()
		return ErrFinished
	default:
		f.mu.Unlock()
		return ErrBusy
	}
	f.state = Confirming
	f.err = nil
	intentID := f.intent.Payment.ExternalPaymentID
	f.mu.Unlock()

	methodID, err := src.PaymentMethod(ctx)
	if err != nil {
		return f.fail(err, "card tokenization failed")
	}

	confirmed, err := f.backend.ConfirmPayment(ctx, intentID, methodID)
	if err != nil {
		return f.fail(err, "payment confirmation failed")
	}

	f.mu.Lock()
	f.payment = confirmed
	switch confirmed.Status {
	case models.PaymentFailed, models.PaymentCanceled:
		f.state = Failed
		f.err = apierror.Processor(string(confirmed.Status), "Payment failed. Please try again or use a different payment method.", nil)
		f.mu.Unlock()
		f.log.Warn().Str("intent", intentID).Str("status", string(confirmed.Status)).Msg("payment not completed")
		return f.Err()
	}
	f.state = Succeeded
	onSuccess := f.onSuccess
	f.mu.Unlock()

	f.log.Info().Str("intent", intentID).Str("status", string(confirmed.Status)).Msg("payment confirmed")
	if onSuccess != nil {
		onSuccess(confirmed)
	}
	return nil
}

// fail returns the flow to Idle so the payer can start over.
func (f *Flow) fail(err error, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Idle
	f.intent = apiclient.Intent{}
	f.err = apierror.Normalize(err)
	f.log.Warn().Err(err).Str("invoice", f.invoice.Reference).Msg(msg)
	return f.err
}

// Reset discards a finished or abandoned attempt. A flow mid-request
// cannot be reset.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == CreatingIntent || f.state == Confirming {
		return ErrBusy
	}
	f.state = Idle
	f.intent = apiclient.Intent{}
	f.payment = models.Payment{}
	f.err = nil
	return nil
}
