package models

// M2MConfig holds the Keycloak client-credentials settings used for
// service-to-service calls.
type M2MConfig struct {
	KeycloakURL   string
	KeycloakRealm string
	ClientID      string
	ClientSecret  string
}

type M2MTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
