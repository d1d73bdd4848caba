package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"instabridge/internal/activity"
	"instabridge/internal/instagram"
	"instabridge/internal/metrics"
	"instabridge/internal/session"
	"instabridge/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const upstreamOpKey = "upstream_operation"

// Deps are the collaborators a Handler needs. Activity, History, Storage and
// Metrics are optional.
type Deps struct {
	Auth     instagram.Authenticator
	Sessions session.Registry
	Activity activity.Sink
	History  activity.Store
	Storage  storage.Service
	Metrics  *metrics.Metrics

	// Checks are pinged by /health, keyed by the name reported for each.
	Checks map[string]HealthCheck

	// RandomTokens issues a uuid token on login instead of the account id.
	RandomTokens bool
}

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Handler serves the bridge routes.
type Handler struct {
	auth         instagram.Authenticator
	sessions     session.Registry
	activity     activity.Sink
	history      activity.Store
	storage      storage.Service
	metrics      *metrics.Metrics
	checks       map[string]HealthCheck
	randomTokens bool
}

// NewHandler creates a new bridge handler
func NewHandler(d Deps) *Handler {
	h := &Handler{
		auth:         d.Auth,
		sessions:     d.Sessions,
		activity:     d.Activity,
		history:      d.History,
		storage:      d.Storage,
		metrics:      d.Metrics,
		checks:       d.Checks,
		randomTokens: d.RandomTokens,
	}
	if h.activity == nil {
		h.activity = activity.Discard
	}
	return h
}

// Authenticate handles POST /authenticate
func (h *Handler) Authenticate(c *gin.Context) {
	var req AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	var client instagram.Client
	err := h.upstream(c, "login", func(ctx context.Context) (err error) {
		client, err = h.auth.Login(ctx, req.Username, req.Password)
		return err
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}

	token := client.AccountID()
	if h.randomTokens {
		token = uuid.NewString()
	}

	sess, err := h.sessions.Register(c.Request.Context(), token, client)
	if sess == nil {
		slog.Error("Failed to register session",
			"error", err,
			"request_id", c.GetString(requestIDKey),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}
	if err != nil {
		slog.Warn("Session registered in memory only",
			"account_id", client.AccountID(),
			"error", err.Error(),
		)
	}

	c.Set(accountIDKey, client.AccountID())
	c.JSON(http.StatusOK, AuthenticateResponse{UserID: token})
}

// GetUserProfile handles GET /getUserProfile
func (h *Handler) GetUserProfile(c *gin.Context) {
	sess := currentSession(c)

	var profile instagram.Profile
	err := h.upstream(c, "profile", func(ctx context.Context) (err error) {
		profile, err = sess.Client.Profile(ctx, sess.AccountID())
		return err
	})
	if err != nil {
		upstreamFailed(c)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetUserFollowers handles GET /getUserFollowers
func (h *Handler) GetUserFollowers(c *gin.Context) {
	sess := currentSession(c)

	var users []instagram.User
	err := h.upstream(c, "followers", func(ctx context.Context) (err error) {
		users, err = sess.Client.Followers(ctx, sess.AccountID())
		return err
	})
	if err != nil {
		upstreamFailed(c)
		return
	}

	c.JSON(http.StatusOK, usernames(users))
}

// GetUserFollowings handles GET /getUserFollowings
func (h *Handler) GetUserFollowings(c *gin.Context) {
	sess := currentSession(c)

	var users []instagram.User
	err := h.upstream(c, "following", func(ctx context.Context) (err error) {
		users, err = sess.Client.Following(ctx, sess.AccountID())
		return err
	})
	if err != nil {
		upstreamFailed(c)
		return
	}

	c.JSON(http.StatusOK, usernames(users))
}

// GetUserPosts handles GET /getUserPosts
func (h *Handler) GetUserPosts(c *gin.Context) {
	posts, ok := h.fetchPosts(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, posts)
}

// FollowUser handles POST /followUser
func (h *Handler) FollowUser(c *gin.Context) {
	var req UserTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	h.mutate(c, activity.ActionFollow, string(req.UserID), "", func(ctx context.Context, client instagram.Client) error {
		return client.Follow(ctx, string(req.UserID))
	})
}

// UnfollowUser handles POST /unfollowUser
func (h *Handler) UnfollowUser(c *gin.Context) {
	var req UserTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	h.mutate(c, activity.ActionUnfollow, string(req.UserID), "", func(ctx context.Context, client instagram.Client) error {
		return client.Unfollow(ctx, string(req.UserID))
	})
}

// PostLike handles POST /postLike
func (h *Handler) PostLike(c *gin.Context) {
	var req MediaTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	h.mutate(c, activity.ActionLike, string(req.MediaID), "", func(ctx context.Context, client instagram.Client) error {
		return client.Like(ctx, string(req.MediaID))
	})
}

// PostComment handles POST /postComment
func (h *Handler) PostComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	h.mutate(c, activity.ActionComment, string(req.MediaID), req.Text, func(ctx context.Context, client instagram.Client) error {
		return client.Comment(ctx, string(req.MediaID), req.Text)
	})
}

// GetUserActivity handles GET /getUserActivity?limit=N
func (h *Handler) GetUserActivity(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "activity log unavailable"})
		return
	}

	limit := activity.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	sess := currentSession(c)
	events, err := h.history.List(c.Request.Context(), sess.AccountID(), limit)
	if err != nil {
		slog.Error("Failed to list activity",
			"account_id", sess.AccountID(),
			"error", err.Error(),
			"request_id", c.GetString(requestIDKey),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list activity"})
		return
	}
	if events == nil {
		events = []activity.Event{}
	}

	c.JSON(http.StatusOK, events)
}

// ExportUserPosts handles POST /exportUserPosts. The caller's feed is
// written to object storage and a presigned download URL is returned.
func (h *Handler) ExportUserPosts(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}

	posts, ok := h.fetchPosts(c)
	if !ok {
		return
	}

	data, err := json.Marshal(posts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode export"})
		return
	}

	sess := currentSession(c)
	ctx := c.Request.Context()
	fileKey := fmt.Sprintf("exports/%s/%s.json", sess.AccountID(), uuid.New().String())

	if err := h.storage.Put(ctx, fileKey, "application/json", data); err != nil {
		slog.Error("Failed to store export", "file_key", fileKey, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store export"})
		return
	}

	downloadURL, err := h.storage.GeneratePresignedDownloadURL(ctx, fileKey, exportURLTTL)
	if err != nil {
		slog.Error("Failed to presign export", "file_key", fileKey, "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate download URL"})
		return
	}

	c.JSON(http.StatusOK, ExportResponse{
		FileKey:     fileKey,
		DownloadURL: downloadURL,
		ExpiresAt:   time.Now().Add(exportURLTTL).Unix(),
	})
}

// Health is the bridge health check handler. Every configured dependency
// is pinged; a single failure turns the reply into a 503.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	response := gin.H{
		"status":   "healthy",
		"service":  "instabridge",
		"sessions": h.sessions.Len(),
	}
	status := http.StatusOK

	for name, check := range h.checks {
		dep := map[string]string{"status": "up"}
		if err := check(ctx); err != nil {
			dep["status"] = "down"
			dep["error"] = err.Error()
			response["status"] = "unhealthy"
			status = http.StatusServiceUnavailable
			slog.Warn("Health check failed", "dependency", name, "error", err.Error())
		}
		response[name] = dep
	}

	c.JSON(status, response)
}

func (h *Handler) fetchPosts(c *gin.Context) ([]PostSummary, bool) {
	sess := currentSession(c)

	var items []instagram.Item
	err := h.upstream(c, "feed", func(ctx context.Context) (err error) {
		items, err = sess.Client.UserFeed(ctx, sess.AccountID())
		return err
	})
	if err != nil {
		upstreamFailed(c)
		return nil, false
	}

	posts := make([]PostSummary, 0, len(items))
	for _, item := range items {
		posts = append(posts, PostSummary{
			ID:       item.ID,
			ImageURL: item.ImageURL(),
			Caption:  item.CaptionText(),
		})
	}
	return posts, true
}

// mutate performs one mutating upstream call for the current session and
// records it as activity. Recording failures never change the reply.
func (h *Handler) mutate(c *gin.Context, action activity.Action, target, text string, fn func(context.Context, instagram.Client) error) {
	sess := currentSession(c)

	err := h.upstream(c, string(action), func(ctx context.Context) error {
		return fn(ctx, sess.Client)
	})
	if err != nil {
		upstreamFailed(c)
		return
	}

	event := activity.NewEvent(sess.AccountID(), action, target, text)
	if err := h.activity.Record(c.Request.Context(), event); err != nil {
		slog.Warn("Failed to record activity",
			"account_id", sess.AccountID(),
			"action", action,
			"error", err.Error(),
		)
	}

	c.JSON(http.StatusOK, statusSuccess)
}

// upstream runs one call against Instagram, tagging the request for the
// access log and counting the outcome.
func (h *Handler) upstream(c *gin.Context, op string, fn func(context.Context) error) error {
	c.Set(upstreamOpKey, op)

	err := fn(c.Request.Context())
	if h.metrics != nil {
		h.metrics.ObserveUpstream(op, err)
	}
	if err != nil {
		_ = c.Error(err)
		slog.Error("Upstream call failed",
			"operation", op,
			"account_id", c.GetString(accountIDKey),
			"error", err.Error(),
			"request_id", c.GetString(requestIDKey),
		)
	}
	return err
}

func upstreamFailed(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "upstream request failed"})
}

func usernames(users []instagram.User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}
