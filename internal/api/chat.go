package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/promptshot/backend/internal/auth"
	"github.com/promptshot/backend/internal/billing"
	"github.com/promptshot/backend/internal/compare"
	"github.com/promptshot/backend/internal/ledger"
	"github.com/promptshot/backend/internal/ratelimit"
)

// Chat runs the multi-model fan-out for one prompt.
func Chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string   `json:"prompt"`
		Models []string `json:"models"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := compare.Validate(body.Prompt, body.Models); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, ok := auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	resp, err := compare.Run(r.Context(), user, body.Prompt, body.Models)
	if err != nil {
		switch {
		case errors.Is(err, ratelimit.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again in a minute.")
		case errors.Is(err, ledger.ErrInsufficientCredits):
			writeError(w, http.StatusPaymentRequired, "Insufficient credits for paid models")
		case errors.Is(err, compare.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Printf("chat request failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Checkout creates a Stripe session for a credit purchase.
func Checkout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount int64  `json:"amount"`
		Origin string `json:"origin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Amount == 0 {
		writeError(w, http.StatusBadRequest, "amount required")
		return
	}

	user, ok := auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	session, err := billing.Checkout(user.ID, body.Amount, body.Origin)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, billing.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Printf("checkout failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Checkout failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// Webhook settles a completed checkout session. Replays are acknowledged
// without granting credits twice.
func Webhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.SessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId required")
		return
	}

	credits, already, err := billing.Redeem(body.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrPaymentIncomplete), errors.Is(err, billing.ErrInvalidSession):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, billing.ErrNotConfigured):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Printf("webhook failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Webhook failed")
		}
		return
	}
	if already {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "already": true})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "credits": credits})
}
