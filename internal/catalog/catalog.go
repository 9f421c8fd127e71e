// Package catalog is the pricing oracle: a DB-cached snapshot of the
// upstream model listing, grouped by provider, refreshed when older than
// an hour.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/promptshot/backend/internal/database"
	"github.com/promptshot/backend/internal/openrouter"
)

// FreshnessWindow is how long a cached snapshot is served without refetch.
const FreshnessWindow = time.Hour

type Model struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Pricing       Pricing `json:"pricing"`
	ContextLength int     `json:"context_length"`
	IsFree        bool    `json:"isFree"`
}

// Pricing keeps the upstream decimal strings (currency per token).
type Pricing struct {
	Prompt     string `json:"prompt"`
	Completion string `json:"completion"`
}

type Group struct {
	Provider string  `json:"provider"`
	Models   []Model `json:"models"`
}

// Price is the priced lookup result for one model.
type Price struct {
	Prompt     float64
	Completion float64
	Free       bool
}

// Groups returns the catalog, serving the cached snapshot while it is
// fresh and non-empty, refetching otherwise. When a refetch fails but a
// stale snapshot exists, the stale snapshot is returned.
func Groups(ctx context.Context) ([]Group, error) {
	var cache database.ModelCache
	haveCache := database.DB.Order("id").First(&cache).Error == nil

	now := time.Now().UnixMilli()
	if haveCache && cache.Groups != "" && now-cache.FetchedAt < FreshnessWindow.Milliseconds() {
		if groups := decodeGroups(cache.Groups); len(groups) > 0 {
			return groups, nil
		}
	}

	models, err := openrouter.ListModels(ctx)
	if err != nil {
		if haveCache {
			if groups := decodeGroups(cache.Groups); len(groups) > 0 {
				return groups, nil
			}
		}
		return nil, fmt.Errorf("refresh catalog: %w", err)
	}

	groups := buildGroups(models)

	encoded, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("encode catalog: %w", err)
	}
	if haveCache {
		database.DB.Model(&cache).Updates(map[string]interface{}{
			"groups":     string(encoded),
			"fetched_at": now,
		})
	} else {
		database.DB.Create(&database.ModelCache{Groups: string(encoded), FetchedAt: now})
	}

	return groups, nil
}

// PriceOf looks up one model's prices. Absent models return found=false.
func PriceOf(ctx context.Context, modelID string) (Price, bool, error) {
	groups, err := Groups(ctx)
	if err != nil {
		return Price{}, false, err
	}
	p, ok := Find(groups, modelID)
	return p, ok, nil
}

// Find locates a model's price in an already loaded catalog.
func Find(groups []Group, modelID string) (Price, bool) {
	for _, g := range groups {
		for _, m := range g.Models {
			if m.ID == modelID {
				return Price{
					Prompt:     parsePrice(m.Pricing.Prompt),
					Completion: parsePrice(m.Pricing.Completion),
					Free:       m.IsFree,
				}, true
			}
		}
	}
	return Price{}, false
}

func buildGroups(models []openrouter.CatalogModel) []Group {
	grouped := map[string][]Model{}
	for _, m := range models {
		provider := "other"
		if idx := strings.Index(m.ID, "/"); idx > 0 {
			provider = m.ID[:idx]
		}
		providerName := titleCase(provider)

		prompt := m.Pricing.Prompt
		if prompt == "" {
			prompt = "0"
		}
		completion := m.Pricing.Completion
		if completion == "" {
			completion = "0"
		}
		name := m.Name
		if name == "" {
			name = m.ID
		}
		contextLength := m.ContextLength
		if contextLength == 0 {
			contextLength = 4096
		}

		grouped[providerName] = append(grouped[providerName], Model{
			ID:            m.ID,
			Name:          name,
			Pricing:       Pricing{Prompt: prompt, Completion: completion},
			ContextLength: contextLength,
			IsFree:        parsePrice(prompt) == 0 && parsePrice(completion) == 0,
		})
	}

	groups := make([]Group, 0, len(grouped))
	for provider, ms := range grouped {
		sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
		groups = append(groups, Group{Provider: provider, Models: ms})
	}
	sort.SliceStable(groups, func(i, j int) bool { return len(groups[i].Models) > len(groups[j].Models) })
	return groups
}

func decodeGroups(encoded string) []Group {
	var groups []Group
	if json.Unmarshal([]byte(encoded), &groups) != nil {
		return nil
	}
	return groups
}

func parsePrice(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
