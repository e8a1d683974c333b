package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ExtractTokenFromRequest pulls the bearer token out of the
// Authorization header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || token == "" || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("Authorization header must be 'Bearer <token>'")
	}

	return token, nil
}
