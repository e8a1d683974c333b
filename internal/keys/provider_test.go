package keys_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/keys"
	"ms-booking/internal/logger"
)

func TestEnvProviderReadsKeyMaterial(t *testing.T) {
	t.Setenv("TICKET_SIGNING_KEY", "env-secret")
	t.Setenv("TICKET_SIGNING_KEY_ID", "kid-7")
	t.Setenv("TICKET_SIGNING_KEY_PREV", "old-secret")

	p := &keys.EnvProvider{}
	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, "kid-7", current.ID)
	assert.Equal(t, "env-secret", current.Secret)

	previous, ok := p.Previous()
	require.True(t, ok)
	assert.Equal(t, "old-secret", previous.Secret)
	assert.Equal(t, "env-0", previous.ID)
}

func TestEnvProviderFailsWhenUnset(t *testing.T) {
	t.Setenv("TICKET_SIGNING_KEY", "")
	t.Setenv("TICKET_SIGNING_KEY_PREV", "")

	p := &keys.EnvProvider{}
	_, err := p.Current()
	assert.Error(t, err)

	_, ok := p.Previous()
	assert.False(t, ok)
}

func TestRemoteProviderFetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"current":  keys.SigningKey{ID: "r1", Secret: "remote-secret"},
			"previous": keys.SigningKey{ID: "r0", Secret: "older-secret"},
		})
	}))
	t.Cleanup(srv.Close)

	p := keys.NewRemoteProvider(srv.Client(), srv.URL, time.Minute, logger.NewLogger())

	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, "r1", current.ID)

	previous, ok := p.Previous()
	require.True(t, ok)
	assert.Equal(t, "r0", previous.ID)

	// Inside the TTL the cached pair is served without another fetch.
	_, err = p.Current()
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemoteProviderServesStaleOnFailure(t *testing.T) {
	var failing atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"current": keys.SigningKey{ID: "r1", Secret: "remote-secret"},
		})
	}))
	t.Cleanup(srv.Close)

	// Zero TTL forces a refresh attempt on every call.
	p := keys.NewRemoteProvider(srv.Client(), srv.URL, 0, logger.NewLogger())

	_, err := p.Current()
	require.NoError(t, err)

	failing.Store(true)

	current, err := p.Current()
	require.NoError(t, err)
	assert.Equal(t, "remote-secret", current.Secret)
}

func TestRemoteProviderErrorsWithNothingCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	p := keys.NewRemoteProvider(srv.Client(), srv.URL, time.Minute, logger.NewLogger())
	_, err := p.Current()
	assert.Error(t, err)
}
