package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// GetM2MToken returns a machine-to-machine token for calls to the
// events service, serving from the Redis cache when a valid token is
// already stored and hitting Keycloak otherwise.
func GetM2MToken(ctx context.Context, cfg models.M2MConfig, client *http.Client, cache *RedisTokenCache, log *logger.Logger) (string, error) {
	if cache != nil {
		cached, err := cache.GetToken(ctx)
		if err != nil {
			log.Warn("AUTH", fmt.Sprintf("Token cache read failed, fetching fresh token: %v", err))
		} else if cached != nil {
			return cached.Token, nil
		}
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", cfg.KeycloakURL, cfg.KeycloakRealm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", cfg.ClientID)
	data.Set("client_secret", cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		log.Error("AUTH", fmt.Sprintf("Token request to Keycloak failed: %v", err))
		return "", err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Error("AUTH", fmt.Sprintf("Error closing token response body: %v", cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.Error("AUTH", fmt.Sprintf("Keycloak token response %s: %s", resp.Status, string(bodyBytes)))
		return "", fmt.Errorf("failed to get token, status: %s", resp.Status)
	}

	var tokenResp models.M2MTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	if cache != nil && tokenResp.ExpiresIn > 0 {
		if err := cache.SetToken(ctx, tokenResp.AccessToken, tokenResp.ExpiresIn); err != nil {
			log.Warn("AUTH", fmt.Sprintf("Failed to cache M2M token: %v", err))
		}
	}

	return tokenResp.AccessToken, nil
}
