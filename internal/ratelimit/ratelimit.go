// Package ratelimit enforces a per-user sliding window over entries in the
// database, so the window survives restarts and is shared across replicas.
package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/promptshot/backend/internal/database"
)

// Window is the sliding admission window.
const Window = 60 * time.Second

const (
	// FreeLimit applies to users with a zero balance.
	FreeLimit = 10
	// PaidLimit applies to users holding a positive balance.
	PaidLimit = 30
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Admit checks the trailing window for the user and records the request
// when allowed. Entries exactly Window old count as expired. Expired rows
// are deleted opportunistically after admission; the limit itself is
// enforced by counting, so a failed cleanup never causes a false rejection.
func Admit(userID uint, paid bool) error {
	now := time.Now().UnixMilli()
	key := entryKey(userID)

	var entries []database.RateLimitEntry
	database.DB.Where("key = ?", key).Find(&entries)

	recent := 0
	var expired []uint
	for _, e := range entries {
		if now-e.Timestamp < Window.Milliseconds() {
			recent++
		} else {
			expired = append(expired, e.ID)
		}
	}

	limit := FreeLimit
	if paid {
		limit = PaidLimit
	}
	if recent >= limit {
		return ErrRateLimited
	}

	if err := database.DB.Create(&database.RateLimitEntry{Key: key, Timestamp: now}).Error; err != nil {
		return fmt.Errorf("record rate entry: %w", err)
	}

	// Best-effort garbage collection.
	if len(expired) > 0 {
		database.DB.Delete(&database.RateLimitEntry{}, expired)
	}

	return nil
}

func entryKey(userID uint) string {
	return fmt.Sprintf("rate_%d", userID)
}
