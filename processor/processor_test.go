package processor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/mohsenfayyazi/billder/apierror"
)

func newStripeFake(t *testing.T, handler http.HandlerFunc) *StripeTokenizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeTokenizer("sk_test_fake", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
}

func TestStripeTokenizerCreatesPaymentMethod(t *testing.T) {
	var form url.Values
	tok := newStripeFake(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_methods", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pm_test_123","object":"payment_method","type":"card"}`))
	})

	id, err := tok.Tokenize(context.Background(), Card{Number: "4242 4242 4242 4242", ExpMonth: "12", ExpYear: "30", CVC: "123"})
	require.NoError(t, err)
	assert.Equal(t, "pm_test_123", id)
	assert.Equal(t, "card", form.Get("type"))
	assert.Equal(t, "4242424242424242", form.Get("card[number]"))
	assert.Equal(t, "2030", form.Get("card[exp_year]"))
}

func TestStripeTokenizerMapsDecline(t *testing.T) {
	tok := newStripeFake(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`))
	})

	_, err := tok.Tokenize(context.Background(), Card{Number: "4000000000009995", ExpMonth: "12", ExpYear: "2030", CVC: "123"})
	require.Error(t, err)

	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierror.KindProcessor, apiErr.Kind)
	assert.Equal(t, MsgInsufficientFunds, apiErr.Message)
	assert.Equal(t, "insufficient_funds", apiErr.Code)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
}

func TestMessageFor(t *testing.T) {
	cases := []struct {
		failure Failure
		want    string
	}{
		{Failure{Type: "card_error", Code: "card_declined"}, MsgCardDeclined},
		{Failure{Type: "card_error", Code: "insufficient_funds"}, MsgInsufficientFunds},
		{Failure{Type: "card_error", Code: "card_declined", DeclineCode: "insufficient_funds"}, MsgInsufficientFunds},
		{Failure{Type: "card_error", Code: "expired_card"}, MsgExpiredCard},
		{Failure{Type: "card_error", Code: "incorrect_cvc"}, MsgIncorrectCVC},
		{Failure{Type: "card_error", Code: "processing_weirdness", Message: "raw"}, MsgProcessingError},
		{Failure{Type: "validation_error", Message: "Your card number is incomplete."}, "Your card number is incomplete."},
		{Failure{Type: "validation_error"}, MsgCheckPaymentInfo},
		{Failure{Type: "authentication_error"}, MsgNotLoaded},
		{Failure{Type: "api_error"}, MsgProcessingError},
		{Failure{}, MsgProcessingError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MessageFor(tc.failure), "%+v", tc.failure)
	}
}

func TestTranslateNonStripeErrors(t *testing.T) {
	assert.Nil(t, Translate(nil))

	err := Translate(&url.Error{Op: "Post", URL: "https://api.stripe.com", Err: errors.New("dial tcp")})
	assert.True(t, apierror.Is(err, apierror.KindNetwork))

	err = Translate(errors.New("weird"))
	assert.Equal(t, MsgProcessingError, apierror.Message(err))
}

func TestCardValidate(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	brand, err := Card{Number: "4242424242424242", ExpMonth: "12", ExpYear: "2027", CVC: "123"}.Validate(now)
	require.NoError(t, err)
	assert.Equal(t, "visa", brand)

	_, err = Card{Number: "378282246310005", ExpMonth: "12", ExpYear: "2027", CVC: "123"}.Validate(now)
	assert.Error(t, err, "amex needs a four digit code")

	_, err = Card{Number: "4242424242424242", ExpMonth: "01", ExpYear: "2026", CVC: "123"}.Validate(now)
	assert.Error(t, err)
}
