package compare

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/promptshot/backend/internal/config"
	"github.com/promptshot/backend/internal/database"
	"github.com/promptshot/backend/internal/ledger"
	"github.com/promptshot/backend/internal/openrouter"
	"github.com/promptshot/backend/internal/ratelimit"
)

func setupTestDB(t *testing.T) func() {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "compare-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	config.Cfg.DatabasePath = filepath.Join(tmpDir, "test.db")
	config.Cfg.OpenRouterKey = "sk-or-test"

	if err := database.Init(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to init database: %v", err)
	}

	return func() {
		database.Close()
		os.RemoveAll(tmpDir)
	}
}

const testListing = `{"data":[
	{"id":"paid/alpha","name":"Alpha","pricing":{"prompt":"0.000002","completion":"0.000002"},"context_length":8192},
	{"id":"paid/beta","name":"Beta","pricing":{"prompt":"0.000002","completion":"0.000002"},"context_length":8192},
	{"id":"free/gamma","name":"Gamma","pricing":{"prompt":"0","completion":"0"},"context_length":4096}
]}`

// fakeUpstream serves the catalog and completions. Completions for
// "broken/model" have their connection severed to simulate a transport
// failure isolated to that model.
func fakeUpstream(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.Write([]byte(testListing))
		case "/v1/chat/completions":
			var payload struct {
				Model string `json:"model"`
			}
			json.NewDecoder(r.Body).Decode(&payload)
			if payload.Model == "broken/model" {
				conn, _, err := w.(http.Hijacker).Hijack()
				if err == nil {
					conn.Close()
				}
				return
			}
			w.Write([]byte(`{"choices":[{"message":{"content":"response from ` + payload.Model + `"}}],"usage":{"total_tokens":100}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	openrouter.SetBaseURL(srv.URL)
}

func createUser(t *testing.T, credits float64) *database.User {
	t.Helper()
	user := &database.User{Email: strings.ToLower(t.Name()) + "@example.com", Credits: credits}
	if err := database.DB.Create(user).Error; err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	return user
}

func TestValidate(t *testing.T) {
	long := strings.Repeat("a", maxPromptLength+1)
	many := make([]string, maxModels+1)
	for i := range many {
		many[i] = "provider/model"
	}

	tests := []struct {
		name    string
		prompt  string
		models  []string
		wantErr bool
	}{
		{"valid", "hello", []string{"openai/gpt-4o"}, false},
		{"variant suffix", "hello", []string{"meta-llama/llama-3.1-8b-instruct:free"}, false},
		{"empty prompt", "", []string{"openai/gpt-4o"}, true},
		{"whitespace prompt", "   ", []string{"openai/gpt-4o"}, true},
		{"too long prompt", long, []string{"openai/gpt-4o"}, true},
		{"no models", "hello", nil, true},
		{"too many models", "hello", many, true},
		{"missing provider", "hello", []string{"gpt-4o"}, true},
		{"bad characters", "hello", []string{"openai/gpt 4o"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.prompt, tt.models)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

func TestRunFreeModelsZeroBalance(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)

	user := createUser(t, 0)
	resp, err := Run(context.Background(), user, "hello", []string{"free/gamma"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(resp.Results) != 1 || resp.Results[0].Error {
		t.Fatalf("Results = %+v", resp.Results)
	}
	if resp.Usage.Tokens != 100 {
		t.Errorf("Usage tokens = %d, want 100", resp.Usage.Tokens)
	}
	if resp.Usage.Cost != 0 {
		t.Errorf("Usage cost = %f, want 0 for free model", resp.Usage.Cost)
	}

	var fresh database.User
	database.DB.First(&fresh, user.ID)
	if fresh.Credits != 0 {
		t.Errorf("Balance = %f, want 0 (untouched)", fresh.Credits)
	}
}

func TestRunPaidModelsReserveAndRefund(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)

	user := createUser(t, 1.0)
	resp, err := Run(context.Background(), user, "hello", []string{"paid/alpha", "paid/beta"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Each model: (0.000002+0.000002) * 100 tokens * 2
	wantActual := 2 * (0.000002 + 0.000002) * 100 * costMargin
	if math.Abs(resp.Usage.Cost-wantActual) > 1e-12 {
		t.Errorf("Usage cost = %.9f, want %.9f", resp.Usage.Cost, wantActual)
	}
	if resp.Usage.Tokens != 200 {
		t.Errorf("Usage tokens = %d, want 200", resp.Usage.Tokens)
	}

	// Post-request balance must be pre-balance minus actual cost, with the
	// estimate overshoot refunded.
	var fresh database.User
	database.DB.First(&fresh, user.ID)
	if math.Abs(fresh.Credits-(1.0-wantActual)) > 1e-9 {
		t.Errorf("Balance = %.9f, want %.9f", fresh.Credits, 1.0-wantActual)
	}

	if fresh.TotalTokens != 200 || fresh.TotalQueries != 1 {
		t.Errorf("Totals = %d tokens / %d queries, want 200 / 1", fresh.TotalTokens, fresh.TotalQueries)
	}
	var logCount int64
	database.DB.Model(&database.UsageLog{}).Where("user_id = ?", user.ID).Count(&logCount)
	if logCount != 1 {
		t.Errorf("Usage logs = %d, want 1", logCount)
	}
}

func TestRunInsufficientCredits(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)

	// Estimate per paid model: (0.000002+0.000002)*1024*2 ≈ 0.0082
	user := createUser(t, 0.001)
	_, err := Run(context.Background(), user, "hello", []string{"paid/alpha"})
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("error = %v, want ErrInsufficientCredits", err)
	}

	var fresh database.User
	database.DB.First(&fresh, user.ID)
	if fresh.Credits != 0.001 {
		t.Errorf("Balance changed on rejected request: %f", fresh.Credits)
	}

	// The admitted attempt still consumed a rate-limit slot.
	var entries int64
	database.DB.Model(&database.RateLimitEntry{}).Count(&entries)
	if entries != 1 {
		t.Errorf("Rate entries = %d, want 1", entries)
	}
}

func TestRunFailingModelIsolated(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)

	user := createUser(t, 0)
	resp, err := Run(context.Background(), user, "hello", []string{"broken/model", "free/gamma"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	broken := resp.Results[0]
	if !broken.Error {
		t.Error("Expected error flag on failed model")
	}
	if broken.Text == "" {
		t.Error("Expected failure message as text")
	}
	if broken.Tokens != 0 {
		t.Errorf("Failed model tokens = %d, want 0", broken.Tokens)
	}

	sibling := resp.Results[1]
	if sibling.Error || sibling.Loading {
		t.Errorf("Sibling result = %+v, want successful", sibling)
	}
	if !strings.Contains(sibling.Text, "free/gamma") {
		t.Errorf("Sibling text = %q", sibling.Text)
	}
	if sibling.Tokens != 100 {
		t.Errorf("Sibling tokens = %d, want 100", sibling.Tokens)
	}
}

func TestRunUnknownModelTreatedUnpriced(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)

	// Not in the catalog: contributes nothing to the estimate, so a
	// zero-balance user is not rejected.
	user := createUser(t, 0)
	resp, err := Run(context.Background(), user, "hello", []string{"mystery/model"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Usage.Cost != 0 {
		t.Errorf("Cost = %f, want 0 for unpriced model", resp.Usage.Cost)
	}
}

func TestRunRateLimited(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)

	user := createUser(t, 0)
	for i := 0; i < ratelimit.FreeLimit; i++ {
		if _, err := Run(context.Background(), user, "hello", []string{"free/gamma"}); err != nil {
			t.Fatalf("Request %d failed: %v", i+1, err)
		}
	}

	_, err := Run(context.Background(), user, "hello", []string{"free/gamma"})
	if !errors.Is(err, ratelimit.ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}

func TestRunMissingUpstreamKey(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()
	fakeUpstream(t)
	config.Cfg.OpenRouterKey = ""

	user := createUser(t, 0)
	_, err := Run(context.Background(), user, "hello", []string{"free/gamma"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}

	// A key set through the admin config store is picked up.
	if err := database.SetConfig("OPENROUTER_API_KEY", "sk-or-db"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if _, err := Run(context.Background(), user, "hello", []string{"free/gamma"}); err != nil {
		t.Errorf("Run with stored key failed: %v", err)
	}
}
