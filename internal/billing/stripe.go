// Package billing creates Stripe checkout sessions for credit purchases
// and settles completed sessions into user balances.
package billing

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/promptshot/backend/internal/config"
	"github.com/promptshot/backend/internal/database"
	"github.com/promptshot/backend/internal/ledger"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
)

var (
	// ErrNotConfigured means the Stripe secret is absent from both the
	// environment and the runtime config store.
	ErrNotConfigured = errors.New("STRIPE_SECRET_KEY not configured. Use POST /api/admin/config to set it")

	ErrInvalidAmount     = errors.New("Amount must be 5, 10, or 20")
	ErrPaymentIncomplete = errors.New("Payment not completed")
	ErrInvalidSession    = errors.New("invalid session metadata")
)

var allowedAmounts = map[int64]bool{5: true, 10: true, 20: true}

// CheckoutSession is what the frontend needs to redirect to Stripe.
type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

// Checkout creates a payment session for a fixed credit pack. One purchased
// dollar is one credit.
func Checkout(userID uint, amount int64, origin string) (*CheckoutSession, error) {
	if !allowedAmounts[amount] {
		return nil, ErrInvalidAmount
	}

	sc, err := stripeClient()
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(origin + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(origin),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("usd"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("PromptShot %d Credits", amount)),
					},
					UnitAmount: stripe.Int64(amount * 100),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.AddMetadata("userId", strconv.FormatUint(uint64(userID), 10))
	params.AddMetadata("credits", strconv.FormatInt(amount, 10))

	sess, err := sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CheckoutSession{URL: sess.URL, SessionID: sess.ID}, nil
}

// Redeem settles a completed checkout session: it verifies payment with
// Stripe and grants the purchased credits against the current balance.
// Replays of an already processed session id are a no-op, so a retried
// webhook can never double-credit.
func Redeem(sessionID string) (credits float64, already bool, err error) {
	var processed database.ProcessedPayment
	if database.DB.Where("session_id = ?", sessionID).First(&processed).Error == nil {
		return processed.Credits, true, nil
	}

	sc, err := stripeClient()
	if err != nil {
		return 0, false, err
	}

	sess, err := sc.CheckoutSessions.Get(sessionID, nil)
	if err != nil {
		return 0, false, fmt.Errorf("retrieve checkout session: %w", err)
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return 0, false, ErrPaymentIncomplete
	}

	credits, _ = strconv.ParseFloat(sess.Metadata["credits"], 64)
	if credits <= 0 {
		return 0, false, ErrInvalidSession
	}
	userID, err := strconv.ParseUint(sess.Metadata["userId"], 10, 64)
	if err != nil || userID == 0 {
		return 0, false, ErrInvalidSession
	}

	if err := ledger.Credit(uint(userID), credits); err != nil {
		return 0, false, err
	}

	record := database.ProcessedPayment{
		SessionID: sessionID,
		UserID:    uint(userID),
		Credits:   credits,
	}
	if err := database.DB.Create(&record).Error; err != nil {
		return 0, false, fmt.Errorf("record processed payment: %w", err)
	}

	return credits, false, nil
}

func stripeClient() (*client.API, error) {
	key := config.Cfg.StripeKey
	if key == "" {
		if v, ok := database.GetConfig("STRIPE_SECRET_KEY"); ok && v != "" {
			key = v
		}
	}
	if key == "" {
		return nil, ErrNotConfigured
	}

	sc := &client.API{}
	if config.Cfg.StripeURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL: stripe.String(config.Cfg.StripeURL),
		})
		sc.Init(key, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	} else {
		sc.Init(key, nil)
	}
	return sc, nil
}
