package api

import (
	"encoding/json"
	"net/http"

	"github.com/promptshot/backend/internal/catalog"
	"github.com/promptshot/backend/internal/database"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// HealthCheck reports service health.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
}

// ListModels returns the catalog snapshot grouped by provider.
func ListModels(w http.ResponseWriter, r *http.Request) {
	groups, err := catalog.Groups(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch models")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

// allowedConfigKeys are the only runtime-settable credentials.
var allowedConfigKeys = []string{"OPENROUTER_API_KEY", "STRIPE_SECRET_KEY"}

// SetAdminConfig stores an allow-listed upstream credential.
func SetAdminConfig(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Key == "" || body.Value == "" {
		writeError(w, http.StatusBadRequest, "key and value required")
		return
	}
	if !isAllowedConfigKey(body.Key) {
		writeError(w, http.StatusBadRequest, "Invalid config key. Allowed: OPENROUTER_API_KEY, STRIPE_SECRET_KEY")
		return
	}
	if err := database.SetConfig(body.Key, body.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "key": body.Key})
}

// GetAdminConfig lists the allow-listed keys with masked values.
func GetAdminConfig(w http.ResponseWriter, r *http.Request) {
	result := map[string]string{}
	for _, key := range allowedConfigKeys {
		if v, ok := database.GetConfig(key); ok && v != "" {
			masked := v
			if len(masked) > 8 {
				masked = masked[len(masked)-8:]
			}
			result[key] = "***" + masked
		} else {
			result[key] = "NOT SET"
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func isAllowedConfigKey(key string) bool {
	for _, k := range allowedConfigKeys {
		if k == key {
			return true
		}
	}
	return false
}
