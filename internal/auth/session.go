package auth

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/promptshot/backend/internal/database"
)

// sessionCache maps a token to the user id it resolved to, so repeated
// requests hit the primary key instead of the token index. It is only a
// hint: the fetched record's token is always compared against the bearer
// value, so a rotated or cleared token can never authenticate from cache.
var sessionCache sync.Map

type cachedSession struct {
	UserID   uint
	CachedAt time.Time
}

const sessionCacheTTL = 30 * time.Second

// Authenticate resolves the request's bearer token to a user record.
func Authenticate(r *http.Request) (*database.User, bool) {
	token := bearerToken(r)
	if token == "" {
		return nil, false
	}

	if cached, ok := sessionCache.Load(token); ok {
		cs := cached.(cachedSession)
		if time.Since(cs.CachedAt) < sessionCacheTTL {
			var user database.User
			if err := database.DB.First(&user, cs.UserID).Error; err == nil && user.AuthToken == token {
				return &user, true
			}
		}
		sessionCache.Delete(token)
	}

	var user database.User
	if err := database.DB.Where("auth_token = ?", token).First(&user).Error; err != nil {
		return nil, false
	}

	sessionCache.Store(token, cachedSession{UserID: user.ID, CachedAt: time.Now()})
	return &user, true
}

// InvalidateSession removes a token from the cache after logout or rotation.
func InvalidateSession(token string) {
	if token != "" {
		sessionCache.Delete(token)
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimPrefix(authz, "Bearer ")
	}
	return ""
}
