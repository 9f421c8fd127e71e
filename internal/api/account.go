package api

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/promptshot/backend/internal/auth"
	"github.com/promptshot/backend/internal/database"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup registers a user with a zero balance and issues a session token.
func Signup(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	if !emailPattern.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "Invalid email format")
		return
	}
	if len(body.Password) < 8 {
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	var existing database.User
	if database.DB.Where("email = ?", email).First(&existing).Error == nil {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}

	hash, salt, err := auth.HashPassword(body.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	user := database.User{
		Email:        email,
		PasswordHash: hash,
		PasswordSalt: salt,
		AuthToken:    auth.NewToken(),
	}
	if err := database.DB.Create(&user).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    user.ID,
		"authToken": user.AuthToken,
		"email":     user.Email,
	})
}

// Login verifies credentials and rotates the session token, which
// invalidates every previously issued token.
func Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	var user database.User
	if err := database.DB.Where("email = ?", email).First(&user).Error; err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if !auth.VerifyPassword(body.Password, user.PasswordHash, user.PasswordSalt) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	previous := user.AuthToken
	token := auth.NewToken()
	if err := database.DB.Model(&user).Update("auth_token", token).Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log in")
		return
	}
	auth.InvalidateSession(previous)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    user.ID,
		"authToken": token,
		"email":     user.Email,
	})
}

// Logout clears the active session token.
func Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	previous := user.AuthToken
	if err := database.DB.Model(user).Update("auth_token", "").Error; err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to log out")
		return
	}
	auth.InvalidateSession(previous)

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the caller's profile and cumulative totals.
func Me(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":       user.ID,
		"email":        user.Email,
		"credits":      user.Credits,
		"totalTokens":  user.TotalTokens,
		"totalCost":    user.TotalCost,
		"totalQueries": user.TotalQueries,
	})
}

// GetUsage returns the caller's cumulative summary and recent usage log.
func GetUsage(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var logs []database.UsageLog
	database.DB.Where("user_id = ?", user.ID).Order("timestamp DESC").Limit(20).Find(&logs)

	recent := make([]map[string]interface{}, 0, len(logs))
	for _, l := range logs {
		recent = append(recent, map[string]interface{}{
			"tokens":    l.Tokens,
			"cost":      l.Cost,
			"models":    l.ModelCount,
			"timestamp": l.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summary": map[string]interface{}{
			"totalTokens":  user.TotalTokens,
			"totalCost":    user.TotalCost,
			"totalQueries": user.TotalQueries,
		},
		"recent": recent,
	})
}

// GetUser returns balance and email; callers may only read themselves.
func GetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.Authenticate(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || uint(id) != user.ID {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credits": user.Credits,
		"email":   user.Email,
	})
}
