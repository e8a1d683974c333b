package keys

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"ms-booking/internal/logger"
)

// SigningKey is one keyed-MAC secret with its identifier. The key id
// travels in the token header so the gate knows which key to verify
// against.
type SigningKey struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// Provider supplies the current signing key and, during rotation, the
// immediately-prior one so already-issued tickets keep verifying.
type Provider interface {
	Current() (SigningKey, error)
	Previous() (SigningKey, bool)
}

// EnvProvider reads key material from the environment. It is the
// fallback for development and for the gate service when the key
// collaborator is unreachable at startup.
type EnvProvider struct{}

func (p *EnvProvider) Current() (SigningKey, error) {
	secret := os.Getenv("TICKET_SIGNING_KEY")
	if secret == "" {
		return SigningKey{}, fmt.Errorf("TICKET_SIGNING_KEY not set")
	}
	id := os.Getenv("TICKET_SIGNING_KEY_ID")
	if id == "" {
		id = "env-1"
	}
	return SigningKey{ID: id, Secret: secret}, nil
}

func (p *EnvProvider) Previous() (SigningKey, bool) {
	secret := os.Getenv("TICKET_SIGNING_KEY_PREV")
	if secret == "" {
		return SigningKey{}, false
	}
	id := os.Getenv("TICKET_SIGNING_KEY_PREV_ID")
	if id == "" {
		id = "env-0"
	}
	return SigningKey{ID: id, Secret: secret}, true
}

// RemoteProvider fetches the key pair from the key-management
// collaborator and caches it for a TTL, so signing and gate validation
// do not take a network hit per ticket.
type RemoteProvider struct {
	client   *http.Client
	url      string
	ttl      time.Duration
	logger   *logger.Logger

	mu        sync.RWMutex
	current   SigningKey
	previous  *SigningKey
	fetchedAt time.Time
}

func NewRemoteProvider(client *http.Client, url string, ttl time.Duration, log *logger.Logger) *RemoteProvider {
	return &RemoteProvider{client: client, url: url, ttl: ttl, logger: log}
}

type keyResponse struct {
	Current  SigningKey  `json:"current"`
	Previous *SigningKey `json:"previous,omitempty"`
}

func (p *RemoteProvider) refresh() error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("key service error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("key service returned status %d", resp.StatusCode)
	}

	var keys keyResponse
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return fmt.Errorf("failed to decode key response: %w", err)
	}

	p.mu.Lock()
	p.current = keys.Current
	p.previous = keys.Previous
	p.fetchedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("KEYS", fmt.Sprintf("Signing keys refreshed (current kid=%s)", keys.Current.ID))
	return nil
}

func (p *RemoteProvider) ensureFresh() error {
	p.mu.RLock()
	fresh := p.current.Secret != "" && time.Since(p.fetchedAt) < p.ttl
	p.mu.RUnlock()
	if fresh {
		return nil
	}
	return p.refresh()
}

func (p *RemoteProvider) Current() (SigningKey, error) {
	if err := p.ensureFresh(); err != nil {
		p.mu.RLock()
		stale := p.current
		p.mu.RUnlock()
		if stale.Secret != "" {
			// Serving a stale key beats refusing to verify tickets.
			p.logger.Warn("KEYS", fmt.Sprintf("Key refresh failed, using cached key: %v", err))
			return stale, nil
		}
		return SigningKey{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, nil
}

func (p *RemoteProvider) Previous() (SigningKey, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.previous == nil || p.previous.Secret == "" {
		return SigningKey{}, false
	}
	return *p.previous, true
}
