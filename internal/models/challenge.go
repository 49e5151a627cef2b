package models

import "time"

// Challenge is a pending login attempt. Code is the value the API sent to
// the user's email, it never leaves the server.
type Challenge struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired reports whether the challenge is older than ttl. A zero ttl never expires.
func (c Challenge) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(c.CreatedAt) > ttl
}
