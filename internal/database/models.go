package database

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null;default:''"`
	PasswordSalt string    `gorm:"not null;default:''"`
	AuthToken    string    `gorm:"index"` // single active session token; empty = logged out
	Credits      float64   `gorm:"not null;default:0"`
	TotalTokens  int64     `gorm:"not null;default:0"`
	TotalCost    float64   `gorm:"not null;default:0"`
	TotalQueries int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// ModelCache holds the single catalog snapshot row: provider groups as JSON
// plus the fetch time used for the freshness check.
type ModelCache struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Groups    string `gorm:"not null"`
	FetchedAt int64  `gorm:"not null;default:0"` // unix milliseconds
}

type RateLimitEntry struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Key       string `gorm:"not null;index"`
	Timestamp int64  `gorm:"not null"` // unix milliseconds
}

// UsageLog is append-only; rows are never updated.
type UsageLog struct {
	ID         uint    `gorm:"primaryKey;autoIncrement"`
	UserID     uint    `gorm:"not null;index"`
	Tokens     int64   `gorm:"not null;default:0"`
	Cost       float64 `gorm:"not null;default:0"`
	ModelCount int     `gorm:"not null;default:0"`
	Timestamp  int64   `gorm:"not null;index"` // unix milliseconds
}

type ProcessedPayment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"uniqueIndex;not null"`
	UserID    uint      `gorm:"not null;index"`
	Credits   float64   `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type ConfigEntry struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
