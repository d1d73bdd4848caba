package session

import (
	"time"

	"instabridge/internal/instagram"
)

// Session is an authenticated upstream client registered under a token.
type Session struct {
	Token     string
	Client    instagram.Client
	CreatedAt time.Time
}

// AccountID returns the id of the account the session is logged in as.
func (s *Session) AccountID() string {
	return s.Client.AccountID()
}
