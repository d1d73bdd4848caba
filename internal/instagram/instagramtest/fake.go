// Package instagramtest provides in-memory fakes of the instagram interfaces.
package instagramtest

import (
	"context"
	"errors"
	"sync"

	"instabridge/internal/instagram"
)

// Call records one mutating call made on a Client.
type Call struct {
	Op     string
	Target string
	Text   string
}

// Client is a scriptable instagram.Client. Set Err to make every call fail.
type Client struct {
	ID        string
	User      string
	Device    string
	ProfileV  instagram.Profile
	FollowerV []instagram.User
	FollowV   []instagram.User
	Feed      []instagram.Item
	Err       error

	mu    sync.Mutex
	calls []Call
}

var _ instagram.Client = (*Client)(nil)

func (c *Client) AccountID() string { return c.ID }

func (c *Client) Profile(_ context.Context, _ string) (instagram.Profile, error) {
	return c.ProfileV, c.Err
}

func (c *Client) Followers(_ context.Context, _ string) ([]instagram.User, error) {
	return c.FollowerV, c.Err
}

func (c *Client) Following(_ context.Context, _ string) ([]instagram.User, error) {
	return c.FollowV, c.Err
}

func (c *Client) UserFeed(_ context.Context, _ string) ([]instagram.Item, error) {
	return c.Feed, c.Err
}

func (c *Client) Follow(_ context.Context, userID string) error {
	return c.record(Call{Op: "follow", Target: userID})
}

func (c *Client) Unfollow(_ context.Context, userID string) error {
	return c.record(Call{Op: "unfollow", Target: userID})
}

func (c *Client) Like(_ context.Context, mediaID string) error {
	return c.record(Call{Op: "like", Target: mediaID})
}

func (c *Client) Comment(_ context.Context, mediaID, text string) error {
	return c.record(Call{Op: "comment", Target: mediaID, Text: text})
}

func (c *Client) Snapshot() instagram.Snapshot {
	return instagram.Snapshot{AccountID: c.ID, Username: c.User, DeviceID: c.Device, Authorization: "Bearer " + c.ID}
}

// Calls returns the mutating calls made so far.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

func (c *Client) record(call Call) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	return nil
}

// ErrBadCredentials is returned by Authenticator.Login for unknown users.
var ErrBadCredentials = errors.New("bad credentials")

// Authenticator logs in against a fixed set of accounts.
type Authenticator struct {
	// Accounts maps username to password and client.
	Accounts map[string]Account
	// Restored receives a client for every successful Restore.
	Restored func(instagram.Snapshot) *Client
}

// Account is one fake upstream account.
type Account struct {
	Password string
	Client   *Client
}

var _ instagram.Authenticator = (*Authenticator)(nil)

func (a *Authenticator) Login(_ context.Context, username, password string) (instagram.Client, error) {
	acct, ok := a.Accounts[username]
	if !ok || acct.Password != password {
		return nil, ErrBadCredentials
	}
	return acct.Client, nil
}

func (a *Authenticator) Restore(s instagram.Snapshot) (instagram.Client, error) {
	if s.AccountID == "" {
		return nil, instagram.ErrInvalidSnapshot
	}
	if a.Restored != nil {
		return a.Restored(s), nil
	}
	return &Client{ID: s.AccountID, User: s.Username, Device: s.DeviceID}, nil
}
