// AngelaMos | 2026
// entity.go

package auth

import (
	"time"
)

// RefreshToken is the stored half of a refresh credential. The secret
// itself is never persisted, only its sha256 digest.
type RefreshToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
	UserAgent string    `db:"user_agent"`
	IPAddress string    `db:"ip_address"`
}

func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

type ClientMeta struct {
	UserAgent string
	IPAddress string
}
