package eventmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Fetcher reads event metadata from the events service. Responses are
// cached briefly so gate scans do not hammer the collaborator; the
// cache is short enough that an organizer cancellation is picked up
// within a minute.
type Fetcher struct {
	client   *http.Client
	m2mCfg   models.M2MConfig
	cache    *auth.RedisTokenCache
	logger   *logger.Logger
	cacheTTL time.Duration

	mu     sync.RWMutex
	events map[string]cachedEvent
}

type cachedEvent struct {
	info      models.EventInfo
	fetchedAt time.Time
}

func NewFetcher(client *http.Client, m2mCfg models.M2MConfig, cache *auth.RedisTokenCache, log *logger.Logger) *Fetcher {
	return &Fetcher{
		client:   client,
		m2mCfg:   m2mCfg,
		cache:    cache,
		logger:   log,
		cacheTTL: 30 * time.Second,
		events:   make(map[string]cachedEvent),
	}
}

func baseURL() string {
	u := os.Getenv("EVENTS_SERVICE_URL")
	return strings.TrimSuffix(u, "/")
}

// FetchEvent returns the metadata for one event, or nil when the events
// service does not know it.
func (f *Fetcher) FetchEvent(ctx context.Context, eventID string) (*models.EventInfo, error) {
	if eventID == "" {
		return nil, nil
	}

	f.mu.RLock()
	if cached, ok := f.events[eventID]; ok && time.Since(cached.fetchedAt) < f.cacheTTL {
		f.mu.RUnlock()
		info := cached.info
		return &info, nil
	}
	f.mu.RUnlock()

	token, err := auth.GetM2MToken(ctx, f.m2mCfg, f.client, f.cache, f.logger)
	if err != nil {
		return nil, fmt.Errorf("get M2M token: %w", err)
	}

	url := fmt.Sprintf("%s/internal/v1/events/%s", baseURL(), eventID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Error("EVENTS", fmt.Sprintf("Events service error: %v", err))
		return nil, fmt.Errorf("events service error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			f.logger.Error("EVENTS", fmt.Sprintf("Failed to close event response body: %v", cerr))
		}
	}(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		f.logger.Warn("EVENTS", fmt.Sprintf("Event not found: %s", eventID))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		f.logger.Error("EVENTS", fmt.Sprintf("Events service returned status: %d", resp.StatusCode))
		return nil, fmt.Errorf("events service returned status: %d", resp.StatusCode)
	}

	var info models.EventInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode event response: %w", err)
	}

	f.mu.Lock()
	f.events[eventID] = cachedEvent{info: info, fetchedAt: time.Now()}
	f.mu.Unlock()

	return &info, nil
}
