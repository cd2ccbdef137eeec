package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	log "github.com/sirupsen/logrus"
)

const (
	logPrefix = "auth"

	// SignInEndpoint is the identity toolkit password sign-in endpoint
	SignInEndpoint = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"

	defaultTimeout = 10 * time.Second
)

// TokenAdmin is the part of the firebase auth client the provider needs
type TokenAdmin interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// FirebaseProvider signs users in with firebase email/password accounts
type FirebaseProvider struct {
	apiKey     string
	endpoint   string
	admin      TokenAdmin
	httpClient *http.Client
}

func NewFirebaseProvider(apiKey string, admin TokenAdmin, httpClient *http.Client) *FirebaseProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &FirebaseProvider{
		apiKey:     apiKey,
		endpoint:   SignInEndpoint,
		admin:      admin,
		httpClient: httpClient,
	}
}

// WithEndpoint overrides the sign-in endpoint, e.g. for the auth emulator
func (p *FirebaseProvider) WithEndpoint(endpoint string) *FirebaseProvider {
	p.endpoint = endpoint
	return p
}

type signInResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
	IDToken string `json:"idToken"`
}

func (p *FirebaseProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	body, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"?key="+p.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		// provider detail stays in the log
		log.WithField("prefix", logPrefix).WithField("email", email).Warnf("sign in rejected: %s", data)
		return nil, ErrInvalidCredentials
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("sign in: unexpected status %d", resp.StatusCode)
	}

	var r signInResponse
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}

	token, err := p.admin.VerifyIDToken(ctx, r.IDToken)
	if err != nil {
		log.WithField("prefix", logPrefix).Warnf("verify id token: %s", err)
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		UID:     token.UID,
		Email:   r.Email,
		IDToken: r.IDToken,
	}, nil
}

// SignOut revokes the refresh tokens of the user so the id token cannot be renewed
func (p *FirebaseProvider) SignOut(ctx context.Context, uid string) error {
	return p.admin.RevokeRefreshTokens(ctx, uid)
}
