// Package instagram is a thin client for the Instagram private mobile API.
// It covers login and the handful of account, graph and media calls the
// bridge exposes; everything else about the protocol is out of scope.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultBaseURL is the private API root used by the Android app.
	DefaultBaseURL = "https://i.instagram.com/api/v1"

	appID     = "567067343352427"
	userAgent = "Instagram 269.0.0.18.75 Android (26/8.0.0; 480dpi; 1080x1920; OnePlus; 6T Dev; devitron; qcom; en_US; 314665256)"

	maxResponseBytes = 10 << 20
)

var (
	// ErrNoAccount is returned when login succeeds without an account id.
	ErrNoAccount = errors.New("instagram: login response carried no account id")
	// ErrInvalidSnapshot is returned when a snapshot cannot be restored.
	ErrInvalidSnapshot = errors.New("instagram: invalid session snapshot")
)

// Authenticator creates authenticated clients.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (Client, error)
	Restore(s Snapshot) (Client, error)
}

// Client is an authenticated handle to one account.
type Client interface {
	AccountID() string
	Profile(ctx context.Context, userID string) (Profile, error)
	Followers(ctx context.Context, userID string) ([]User, error)
	Following(ctx context.Context, userID string) ([]User, error)
	Follow(ctx context.Context, userID string) error
	Unfollow(ctx context.Context, userID string) error
	UserFeed(ctx context.Context, userID string) ([]Item, error)
	Like(ctx context.Context, mediaID string) error
	Comment(ctx context.Context, mediaID, text string) error
	Snapshot() Snapshot
}

// Options configures an HTTPAuthenticator.
type Options struct {
	BaseURL      string
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
}

// HTTPAuthenticator talks to the private API over HTTPS. The HTTP clients
// are shared by every session it creates; sessions differ only in headers.
type HTTPAuthenticator struct {
	baseURL string
	timeout time.Duration
	reads   *http.Client
	writes  *http.Client
	logger  *slog.Logger
}

// NewAuthenticator builds an HTTPAuthenticator. GET requests go through a
// retrying transport; POST requests are sent exactly once. Timeout bounds a
// whole call, retries and backoff included.
func NewAuthenticator(opts Options) *HTTPAuthenticator {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = opts.Logger
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPAuthenticator{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		reads:   rc.StandardClient(),
		writes:  &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
	}
}

// Login authenticates with username and password under a fresh device id.
func (a *HTTPAuthenticator) Login(ctx context.Context, username, password string) (Client, error) {
	c := &httpClient{
		auth:     a,
		username: username,
		deviceID: uuid.NewString(),
	}

	form := map[string]string{
		"username":            username,
		"enc_password":        fmt.Sprintf("#PWD_INSTAGRAM:0:%d:%s", time.Now().Unix(), password),
		"guid":                c.deviceID,
		"device_id":           "android-" + strings.ReplaceAll(c.deviceID, "-", "")[:16],
		"phone_id":            uuid.NewString(),
		"login_attempt_count": "0",
	}

	var out loginResponse
	header, err := c.do(ctx, http.MethodPost, "/accounts/login/", nil, form, &out)
	if err != nil {
		return nil, fmt.Errorf("login %s: %w", username, err)
	}

	c.accountID = out.LoggedInUser.PK.String()
	if c.accountID == "" {
		return nil, ErrNoAccount
	}
	if out.LoggedInUser.Username != "" {
		c.username = out.LoggedInUser.Username
	}
	c.authorization = header.Get("ig-set-authorization")

	a.logger.Debug("Instagram login succeeded", "account_id", c.accountID)
	return c, nil
}

// Restore rebuilds a client from a snapshot taken after login.
func (a *HTTPAuthenticator) Restore(s Snapshot) (Client, error) {
	if s.AccountID == "" || s.DeviceID == "" {
		return nil, ErrInvalidSnapshot
	}
	return &httpClient{
		auth:          a,
		accountID:     s.AccountID,
		username:      s.Username,
		deviceID:      s.DeviceID,
		authorization: s.Authorization,
	}, nil
}

type httpClient struct {
	auth          *HTTPAuthenticator
	accountID     string
	username      string
	deviceID      string
	authorization string
}

func (c *httpClient) AccountID() string { return c.accountID }

func (c *httpClient) Snapshot() Snapshot {
	return Snapshot{
		AccountID:     c.accountID,
		Username:      c.username,
		DeviceID:      c.deviceID,
		Authorization: c.authorization,
	}
}

func (c *httpClient) Profile(ctx context.Context, userID string) (Profile, error) {
	var out profileResponse
	if _, err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/info/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("user info %s: %w", userID, err)
	}
	return out.User, nil
}

func (c *httpClient) Followers(ctx context.Context, userID string) ([]User, error) {
	return c.listUsers(ctx, "/friendships/"+url.PathEscape(userID)+"/followers/")
}

func (c *httpClient) Following(ctx context.Context, userID string) ([]User, error) {
	return c.listUsers(ctx, "/friendships/"+url.PathEscape(userID)+"/following/")
}

func (c *httpClient) listUsers(ctx context.Context, path string) ([]User, error) {
	q := url.Values{"rank_token": {uuid.NewString()}}
	var out usersResponse
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return out.Users, nil
}

func (c *httpClient) Follow(ctx context.Context, userID string) error {
	return c.friendship(ctx, "create", userID)
}

func (c *httpClient) Unfollow(ctx context.Context, userID string) error {
	return c.friendship(ctx, "destroy", userID)
}

func (c *httpClient) friendship(ctx context.Context, verb, userID string) error {
	form := c.baseForm()
	form["user_id"] = userID
	if _, err := c.do(ctx, http.MethodPost, "/friendships/"+verb+"/"+url.PathEscape(userID)+"/", nil, form, nil); err != nil {
		return fmt.Errorf("friendship %s %s: %w", verb, userID, err)
	}
	return nil
}

func (c *httpClient) UserFeed(ctx context.Context, userID string) ([]Item, error) {
	var out feedResponse
	if _, err := c.do(ctx, http.MethodGet, "/feed/user/"+url.PathEscape(userID)+"/", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("user feed %s: %w", userID, err)
	}
	return out.Items, nil
}

func (c *httpClient) Like(ctx context.Context, mediaID string) error {
	form := c.baseForm()
	form["media_id"] = mediaID
	form["module_name"] = "feed_timeline"
	if _, err := c.do(ctx, http.MethodPost, "/media/"+url.PathEscape(mediaID)+"/like/", nil, form, nil); err != nil {
		return fmt.Errorf("like %s: %w", mediaID, err)
	}
	return nil
}

func (c *httpClient) Comment(ctx context.Context, mediaID, text string) error {
	form := c.baseForm()
	form["comment_text"] = text
	if _, err := c.do(ctx, http.MethodPost, "/media/"+url.PathEscape(mediaID)+"/comment/", nil, form, nil); err != nil {
		return fmt.Errorf("comment %s: %w", mediaID, err)
	}
	return nil
}

func (c *httpClient) baseForm() map[string]string {
	return map[string]string{
		"_uid":       c.accountID,
		"_uuid":      c.deviceID,
		"radio_type": "wifi-none",
	}
}

// do sends one request and decodes the JSON reply into out when non-nil.
// POST bodies are sent as an unsigned signed_body form, which the API still
// accepts from the Android user agent.
func (c *httpClient) do(ctx context.Context, method, path string, query url.Values, form map[string]string, out any) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.auth.timeout)
	defer cancel()

	target := c.auth.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		payload, err := json.Marshal(form)
		if err != nil {
			return nil, fmt.Errorf("encode form: %w", err)
		}
		body = strings.NewReader(url.Values{"signed_body": {"SIGNATURE." + string(payload)}}.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-IG-App-ID", appID)
	req.Header.Set("X-IG-Device-ID", c.deviceID)
	req.Header.Set("Accept", "application/json")
	if c.authorization != "" {
		req.Header.Set("Authorization", c.authorization)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	httpc := c.auth.writes
	if method == http.MethodGet {
		httpc = c.auth.reads
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode >= http.StatusBadRequest || env.Status == "fail" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}
