package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newTestStripe(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})

	return newStripeProvider("sk_test_123", "https://accounts.example.com/", &stripe.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

func TestStripeProvider_GetStatus(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		state string
	}{
		{
			name:  "paid",
			body:  `{"id":"cs_1","object":"checkout.session","mode":"subscription","status":"complete","payment_status":"paid","subscription":"sub_1"}`,
			state: "paid",
		},
		{
			name:  "open",
			body:  `{"id":"cs_1","object":"checkout.session","mode":"subscription","status":"open","payment_status":"unpaid"}`,
			state: StripeStateOpen,
		},
		{
			name:  "expired",
			body:  `{"id":"cs_1","object":"checkout.session","mode":"subscription","status":"expired","payment_status":"unpaid"}`,
			state: StripeStateExpired,
		},
		{
			name:  "boleto awaiting payment",
			body:  `{"id":"cs_1","object":"checkout.session","mode":"subscription","status":"complete","payment_status":"unpaid"}`,
			state: "unpaid",
		},
		{
			name:  "one-off payment session",
			body:  `{"id":"cs_1","object":"checkout.session","mode":"payment","status":"complete","payment_status":"paid"}`,
			state: StripeStateInvalidMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/checkout/sessions/cs_1"), r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})

			status, err := p.GetStatus(context.Background(), "cs_1")
			require.NoError(t, err)
			assert.Equal(t, "cs_1", status.ReferenceID)
			assert.Equal(t, tt.state, status.State)
		})
	}
}

func TestStripeProvider_GetStatusAPIError(t *testing.T) {
	p := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session"}}`))
	})

	_, err := p.GetStatus(context.Background(), "cs_missing")
	assert.ErrorContains(t, err, "cs_missing")
}

func TestStripeProvider_CreateCheckout(t *testing.T) {
	var form string
	p := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_new","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_new"}`))
	})

	checkout, err := p.CreateCheckout(context.Background(), "cus_1", "a@x.com", Plan{PriceID: "price_1"})
	require.NoError(t, err)
	assert.Equal(t, "cs_new", checkout.ReferenceID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_new", checkout.RedirectURL)

	assert.Contains(t, form, "customer=cus_1")
	assert.Contains(t, form, "mode=subscription")
	assert.Contains(t, form, "session_id%3D%7BCHECKOUT_SESSION_ID%7D")
}

func TestStripeProvider_Validation(t *testing.T) {
	p := NewStripeProvider("sk_test_123", "https://accounts.example.com")

	_, err := p.GetStatus(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyReference)

	_, err = p.CreateCheckout(context.Background(), "cus_1", "a@x.com", Plan{})
	assert.ErrorContains(t, err, "price id")
}
