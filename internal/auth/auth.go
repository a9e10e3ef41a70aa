// Package auth provides the credentials used to authenticate a streaming
// session: an API key ID / secret pair or an OAuth access token.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Environment variables read by FromEnv.
const (
	EnvKeyID      = "APCA_API_KEY_ID"
	EnvSecretKey  = "APCA_API_SECRET_KEY"
	EnvOAuthToken = "APCA_API_OAUTH_TOKEN"
)

// Errors
var (
	ErrMissingKeyID  = errors.New("API key ID is required")
	ErrMissingSecret = errors.New("API secret key is required")
	ErrMissingToken  = errors.New("OAuth token is required")
	ErrNoCredentials = errors.New("no credentials configured")
)

// Credentials authenticate a streaming session.
type Credentials interface {
	// Validate reports whether the credentials are complete.
	Validate() error

	// AuthData returns the "data" object of the authenticate action.
	AuthData() any

	// Redacted returns a loggable description that hides secrets.
	Redacted() string
}

// SecretKey is an API key ID and secret pair.
type SecretKey struct {
	KeyID  string
	Secret string
}

// NewSecretKey returns validated key/secret credentials.
func NewSecretKey(keyID, secret string) (*SecretKey, error) {
	k := &SecretKey{KeyID: keyID, Secret: secret}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks both halves are present.
func (k *SecretKey) Validate() error {
	if strings.TrimSpace(k.KeyID) == "" {
		return ErrMissingKeyID
	}
	if strings.TrimSpace(k.Secret) == "" {
		return ErrMissingSecret
	}
	return nil
}

// AuthData implements Credentials.
func (k *SecretKey) AuthData() any {
	return struct {
		KeyID     string `json:"key_id"`
		SecretKey string `json:"secret_key"`
	}{k.KeyID, k.Secret}
}

// Redacted implements Credentials.
func (k *SecretKey) Redacted() string {
	return "key_id=" + k.KeyID
}

// OAuthKey is an OAuth access token.
type OAuthKey struct {
	Token string
}

// NewOAuthKey returns validated token credentials.
func NewOAuthKey(token string) (*OAuthKey, error) {
	k := &OAuthKey{Token: token}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks the token is present.
func (k *OAuthKey) Validate() error {
	if strings.TrimSpace(k.Token) == "" {
		return ErrMissingToken
	}
	return nil
}

// AuthData implements Credentials.
func (k *OAuthKey) AuthData() any {
	return struct {
		OAuthToken string `json:"oauth_token"`
	}{k.Token}
}

// Redacted implements Credentials.
func (k *OAuthKey) Redacted() string {
	if len(k.Token) <= 4 {
		return "oauth_token=****"
	}
	return "oauth_token=****" + k.Token[len(k.Token)-4:]
}

// Load picks OAuth credentials when token is set, otherwise a key pair.
func Load(keyID, secret, token string) (Credentials, error) {
	switch {
	case token != "":
		return NewOAuthKey(token)
	case keyID == "" && secret == "":
		return nil, ErrNoCredentials
	default:
		k, err := NewSecretKey(keyID, secret)
		if err != nil {
			return nil, fmt.Errorf("load key pair: %w", err)
		}
		return k, nil
	}
}

// FromEnv loads credentials from the standard environment variables.
func FromEnv() (Credentials, error) {
	return Load(os.Getenv(EnvKeyID), os.Getenv(EnvSecretKey), os.Getenv(EnvOAuthToken))
}

// Headers returns REST request headers for c. Credentials types defined
// outside this package yield an empty header.
func Headers(c Credentials) http.Header {
	h := http.Header{}
	switch k := c.(type) {
	case *SecretKey:
		h.Set("APCA-API-KEY-ID", k.KeyID)
		h.Set("APCA-API-SECRET-KEY", k.Secret)
	case *OAuthKey:
		h.Set("Authorization", "Bearer "+k.Token)
	}
	return h
}
