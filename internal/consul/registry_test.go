package consul

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	mu           sync.Mutex
	registered   map[string]map[string]any
	deregistered []string
	token        string
}

func (f *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = r.Header.Get("X-Consul-Token")

	switch {
	case r.URL.Path == "/v1/agent/service/register":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.registered[body["ID"].(string)] = body
	case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		f.deregistered = append(f.deregistered, strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/"))
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func newTestClient(t *testing.T) (*Client, *fakeAgent) {
	t.Helper()
	agent := &fakeAgent{registered: map[string]map[string]any{}}
	srv := httptest.NewServer(agent)
	t.Cleanup(srv.Close)

	c, err := NewClientWithToken(strings.TrimPrefix(srv.URL, "http://"), "acl-token")
	require.NoError(t, err)
	return c, agent
}

func TestNewRegistration(t *testing.T) {
	r := NewRegistration("bridge-1", 8080)

	assert.Equal(t, "instabridge-bridge-1", r.ID)
	assert.Equal(t, "bridge-1", r.Address)
	assert.Equal(t, "http://bridge-1:8080/health", r.CheckURL)
}

func TestRegisterAndDeregister(t *testing.T) {
	c, agent := newTestClient(t)
	r := NewRegistration("bridge-1", 8080)

	require.NoError(t, c.Register(r))
	require.NoError(t, c.Deregister(r))

	agent.mu.Lock()
	defer agent.mu.Unlock()

	reg, ok := agent.registered["instabridge-bridge-1"]
	require.True(t, ok)
	assert.Equal(t, "instabridge", reg["Name"])
	assert.Equal(t, float64(8080), reg["Port"])
	check := reg["Check"].(map[string]any)
	assert.Equal(t, "http://bridge-1:8080/health", check["HTTP"])
	assert.Equal(t, "1m", check["DeregisterCriticalServiceAfter"])

	assert.Equal(t, []string{"instabridge-bridge-1"}, agent.deregistered)
	assert.Equal(t, "acl-token", agent.token)
}

func TestRegister_AgentError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "ACL not found", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClientWithToken(strings.TrimPrefix(srv.URL, "http://"), "")
	require.NoError(t, err)

	err = c.Register(NewRegistration("bridge-1", 8080))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instabridge-bridge-1")
}
