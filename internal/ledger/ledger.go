// Package ledger holds the credit operations against a user's balance.
//
// Every operation is a read-modify-write against the latest record with no
// transactional isolation: two concurrent requests touching the same balance
// can lose an update. That weak contract is deliberate for this design's
// scale (sqlite serializes writers in a single-process deployment); callers
// must not assume stronger semantics.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/promptshot/backend/internal/database"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// Reserve debits amount from the balance upfront. It fails when the
// balance read at this moment cannot cover the amount. The stored balance
// is floored at zero so estimation drift can never persist a negative
// value. Amounts <= 0 are a no-op.
func Reserve(userID uint, amount float64) error {
	if amount <= 0 {
		return nil
	}

	var user database.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.Credits < amount {
		return ErrInsufficientCredits
	}

	remaining := user.Credits - amount
	if remaining < 0 {
		remaining = 0
	}
	return database.DB.Model(&user).Update("credits", remaining).Error
}

// Credit adds amount to the balance read at call time, not to any earlier
// snapshot, so a concurrent purchase completing mid-request is not wiped
// out. Used both for refund reconciliation and purchased credit grants.
// Amounts <= 0 are a no-op.
func Credit(userID uint, amount float64) error {
	if amount <= 0 {
		return nil
	}

	var user database.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return database.DB.Model(&user).Update("credits", user.Credits+amount).Error
}

// Settle appends a usage log entry and folds the request's totals into the
// user's cumulative counters. Requests that produced no tokens are not
// recorded at all.
func Settle(userID uint, tokens int64, cost float64, modelCount int) error {
	if tokens <= 0 {
		return nil
	}

	entry := database.UsageLog{
		UserID:     userID,
		Tokens:     tokens,
		Cost:       cost,
		ModelCount: modelCount,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := database.DB.Create(&entry).Error; err != nil {
		return fmt.Errorf("append usage log: %w", err)
	}

	var user database.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	return database.DB.Model(&user).Updates(map[string]interface{}{
		"total_tokens":  user.TotalTokens + tokens,
		"total_cost":    user.TotalCost + cost,
		"total_queries": user.TotalQueries + 1,
	}).Error
}
