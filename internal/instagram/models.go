package instagram

import (
	"encoding/json"
	"fmt"
)

// User is the subset of an upstream user record returned by list endpoints.
type User struct {
	PK        json.Number `json:"pk"`
	Username  string      `json:"username"`
	FullName  string      `json:"full_name"`
	IsPrivate bool        `json:"is_private"`
}

// Profile is the upstream user record returned by the info endpoint, kept
// verbatim so callers see every field Instagram sends.
type Profile map[string]any

// Item is a single media item from a user feed.
type Item struct {
	ID             string          `json:"id"`
	ImageVersions2 *imageVersions2 `json:"image_versions2"`
	Caption        *caption        `json:"caption"`
}

type imageVersions2 struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type caption struct {
	Text string `json:"text"`
}

// ImageURL returns the first image candidate's URL, or "" if the item has none.
func (i Item) ImageURL() string {
	if i.ImageVersions2 == nil || len(i.ImageVersions2.Candidates) == 0 {
		return ""
	}
	return i.ImageVersions2.Candidates[0].URL
}

// CaptionText returns the caption text, or "" for uncaptioned items.
func (i Item) CaptionText() string {
	if i.Caption == nil {
		return ""
	}
	return i.Caption.Text
}

// Snapshot is the serialisable state of an authenticated client.
type Snapshot struct {
	AccountID     string `json:"account_id"`
	Username      string `json:"username"`
	DeviceID      string `json:"device_id"`
	Authorization string `json:"authorization"`
}

// APIError is a failure reported by the upstream API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("instagram: upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("instagram: upstream status %d: %s", e.StatusCode, e.Message)
}

// envelope is the status wrapper present on every upstream response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type loginResponse struct {
	LoggedInUser struct {
		PK       json.Number `json:"pk"`
		Username string      `json:"username"`
	} `json:"logged_in_user"`
}

type profileResponse struct {
	User Profile `json:"user"`
}

type usersResponse struct {
	Users []User `json:"users"`
}

type feedResponse struct {
	Items []Item `json:"items"`
}
