package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an upstream identifier. Clients send user and media ids either as
// JSON strings or as bare numbers; both decode to the same string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// AuthenticateRequest is the request payload for POST /authenticate
type AuthenticateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthenticateResponse carries the token to send as Authorization afterwards.
type AuthenticateResponse struct {
	UserID string `json:"user_id"`
}

// UserTargetRequest is the payload for follow and unfollow.
type UserTargetRequest struct {
	UserID ID `json:"user_id" binding:"required"`
}

// MediaTargetRequest is the payload for likes.
type MediaTargetRequest struct {
	MediaID ID `json:"media_id" binding:"required"`
}

// CommentRequest is the payload for POST /postComment
type CommentRequest struct {
	MediaID ID     `json:"media_id" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

// PostSummary is the reduced shape of a feed item.
type PostSummary struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Caption  string `json:"caption"`
}

// ExportResponse points at an exported feed in object storage.
type ExportResponse struct {
	FileKey     string `json:"file_key"`
	DownloadURL string `json:"download_url"`
	ExpiresAt   int64  `json:"expires_at"` // Unix timestamp
}

var statusSuccess = map[string]string{"status": "success"}

const (
	exportURLTTL       = time.Hour
	healthCheckTimeout = 2 * time.Second
)
