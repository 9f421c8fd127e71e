// Package compare runs the multi-model fan-out: validate, admit, estimate,
// reserve credits, dispatch every model in parallel, reconcile the
// reservation against measured cost, and record usage.
package compare

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/promptshot/backend/internal/catalog"
	"github.com/promptshot/backend/internal/config"
	"github.com/promptshot/backend/internal/database"
	"github.com/promptshot/backend/internal/ledger"
	"github.com/promptshot/backend/internal/openrouter"
	"github.com/promptshot/backend/internal/ratelimit"
)

const (
	maxPromptLength = 10000
	maxModels       = 10

	// estimatedTokens is the fixed per-model token budget assumed before
	// dispatch; it matches the max_tokens cap sent upstream.
	estimatedTokens = 1024

	// costMargin doubles both the estimate and the measured cost. The
	// margin on measured usage is the billing policy, not an accident.
	costMargin = 2
)

var modelIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-]+/[a-zA-Z0-9_.\-:]+$`)

// ErrNotConfigured means the upstream API key is absent from both the
// environment and the runtime config store.
var ErrNotConfigured = errors.New("OPENROUTER_API_KEY not configured. Use POST /api/admin/config to set it")

// ValidationError is a malformed request; nothing was mutated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Result is the outcome for one model.
type Result struct {
	ModelID string `json:"modelId"`
	Loading bool   `json:"loading"`
	Text    string `json:"text"`
	TimeMs  int64  `json:"time"`
	Tokens  int64  `json:"tokens"`
	Error   bool   `json:"error,omitempty"`
}

type Usage struct {
	Tokens int64   `json:"tokens"`
	Cost   float64 `json:"cost"`
}

type Response struct {
	Results []Result `json:"results"`
	Usage   Usage    `json:"usage"`
}

// Validate checks the request shape. It has no side effects.
func Validate(prompt string, models []string) error {
	if prompt == "" || len(models) == 0 {
		return &ValidationError{"prompt and models required"}
	}
	if strings.TrimSpace(prompt) == "" || len(prompt) > maxPromptLength {
		return &ValidationError{"Prompt must be 1-10000 characters"}
	}
	if len(models) > maxModels {
		return &ValidationError{"Max 10 models allowed"}
	}
	for _, m := range models {
		if !modelIDPattern.MatchString(m) {
			return &ValidationError{"Invalid model ID: " + m}
		}
	}
	return nil
}

// Run executes the fan-out for an authenticated user. The request must
// already have passed Validate. Failure before the reservation leaves no
// state behind beyond the rate-limit entry recorded on admission.
func Run(ctx context.Context, user *database.User, prompt string, models []string) (*Response, error) {
	if err := ratelimit.Admit(user.ID, user.Credits > 0); err != nil {
		return nil, err
	}

	apiKey, err := upstreamKey()
	if err != nil {
		return nil, err
	}

	// Models missing from the catalog are treated as unpriced: they add
	// nothing to the estimate and the upstream rejects unknown ids per
	// result. A catalog refresh failure degrades the same way.
	groups, err := catalog.Groups(ctx)
	if err != nil {
		log.Printf("catalog unavailable, pricing requested models as free: %v", err)
		groups = nil
	}

	var estimate float64
	for _, id := range models {
		if p, ok := catalog.Find(groups, id); ok && !p.Free {
			estimate += costOf(p, estimatedTokens)
		}
	}
	if estimate > 0 && user.Credits < estimate {
		return nil, ledger.ErrInsufficientCredits
	}
	if err := ledger.Reserve(user.ID, estimate); err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(prompt)
	results := make([]Result, len(models))

	var mu sync.Mutex
	var actualCost float64

	var wg sync.WaitGroup
	for i, id := range models {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			start := time.Now()
			completion, err := openrouter.Complete(ctx, apiKey, id, trimmed)
			elapsed := time.Since(start).Milliseconds()
			if err != nil {
				results[i] = Result{ModelID: id, Text: err.Error(), TimeMs: elapsed, Error: true}
				return
			}
			results[i] = Result{ModelID: id, Text: completion.Text, TimeMs: elapsed, Tokens: completion.Tokens}

			if p, ok := catalog.Find(groups, id); ok && !p.Free {
				mu.Lock()
				actualCost += costOf(p, float64(completion.Tokens))
				mu.Unlock()
			}
		}(i, id)
	}
	wg.Wait()

	if estimate > 0 {
		if refund := estimate - actualCost; refund > 0 {
			if err := ledger.Credit(user.ID, refund); err != nil {
				log.Printf("refund of %f for user %d failed: %v", refund, user.ID, err)
			}
		}
	}

	var totalTokens int64
	for _, r := range results {
		totalTokens += r.Tokens
	}
	if err := ledger.Settle(user.ID, totalTokens, actualCost, len(models)); err != nil {
		log.Printf("usage settle for user %d failed: %v", user.ID, err)
	}

	return &Response{Results: results, Usage: Usage{Tokens: totalTokens, Cost: actualCost}}, nil
}

func costOf(p catalog.Price, tokens float64) float64 {
	return (p.Prompt + p.Completion) * tokens * costMargin
}

func upstreamKey() (string, error) {
	if config.Cfg.OpenRouterKey != "" {
		return config.Cfg.OpenRouterKey, nil
	}
	if v, ok := database.GetConfig("OPENROUTER_API_KEY"); ok && v != "" {
		return v, nil
	}
	return "", ErrNotConfigured
}
