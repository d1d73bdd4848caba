package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"instabridge/internal/instagram"
	"instabridge/internal/instagram/instagramtest"
	"instabridge/internal/session"

	"github.com/gin-gonic/gin"
)

// Mock registry for testing
type mockRegistry struct {
	resolveFunc func(ctx context.Context, token string) (*session.Session, error)
}

func (m *mockRegistry) Register(ctx context.Context, token string, client instagram.Client) (*session.Session, error) {
	return &session.Session{Token: token, Client: client}, nil
}

func (m *mockRegistry) Resolve(ctx context.Context, token string) (*session.Session, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, token)
	}
	return nil, session.ErrInvalidToken
}

func (m *mockRegistry) Len() int { return 0 }

func TestTokenAuthMiddleware_ValidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotToken string
	reg := &mockRegistry{
		resolveFunc: func(ctx context.Context, token string) (*session.Session, error) {
			gotToken = token
			return &session.Session{Token: token, Client: &instagramtest.Client{ID: "12345"}}, nil
		},
	}

	r := gin.New()
	r.Use(TokenAuthMiddleware(reg))
	r.GET("/test", func(c *gin.Context) {
		accountID, _ := c.Get("account_id")
		c.JSON(http.StatusOK, gin.H{
			"account_id": accountID,
			"token":      currentSession(c).Token,
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "12345")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if gotToken != "12345" {
		t.Errorf("Expected token 12345 to be resolved, got %q", gotToken)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["account_id"] != "12345" {
		t.Errorf("Expected account_id to be 12345, got %v", response["account_id"])
	}
	if response["token"] != "12345" {
		t.Errorf("Expected token to be 12345, got %v", response["token"])
	}
}

func TestTokenAuthMiddleware_BearerPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotToken string
	reg := &mockRegistry{
		resolveFunc: func(ctx context.Context, token string) (*session.Session, error) {
			gotToken = token
			return &session.Session{Token: token, Client: &instagramtest.Client{ID: "1"}}, nil
		},
	}

	r := gin.New()
	r.Use(TokenAuthMiddleware(reg))
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer abc")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if gotToken != "abc" {
		t.Errorf("Expected Bearer prefix to be stripped, got %q", gotToken)
	}
}

func TestTokenAuthMiddleware_MissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(TokenAuthMiddleware(&mockRegistry{}))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	// No Authorization header
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"error":"Invalid token"}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestTokenAuthMiddleware_UnknownToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(TokenAuthMiddleware(&mockRegistry{}))
	r.GET("/test", func(c *gin.Context) {
		t.Error("handler must not run for an unknown token")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "nope")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
	if body := w.Body.String(); body != `{"error":"Invalid token"}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestTokenAuthMiddleware_StoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	reg := &mockRegistry{
		resolveFunc: func(ctx context.Context, token string) (*session.Session, error) {
			return nil, errors.New("redis: connection refused")
		},
	}

	r := gin.New()
	r.Use(TokenAuthMiddleware(reg))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "12345")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	header := w.Header().Get("X-Request-ID")
	if header == "" {
		t.Fatal("Expected X-Request-ID header")
	}
	if w.Body.String() != header {
		t.Errorf("Expected context request_id %q to match header %q", w.Body.String(), header)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(LoggingMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.Set(upstreamOpKey, "profile")
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test?x=1", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	// Note: Logging output would go to stdout, which we're not capturing here
	// This test just ensures the middleware doesn't break the request flow
}
