// Package oauth validates Google OAuth access tokens against the token-info
// and user-info endpoints.
package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"provalab-api/pkg/apperr"
)

const (
	tokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	userInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
)

type TokenInfo struct {
	Audience  string
	ExpiresIn int
}

type UserInfo struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Identity is a verified Google account.
type Identity struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	Name          string
}

type Google struct {
	clientID     string
	client       *http.Client
	tokenInfoURL string
	userInfoURL  string
}

// NewGoogle checks the token audience only when clientID is set.
func NewGoogle(clientID string, timeout time.Duration) *Google {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Google{
		clientID:     clientID,
		client:       &http.Client{Timeout: timeout},
		tokenInfoURL: tokenInfoURL,
		userInfoURL:  userInfoURL,
	}
}

// Authenticate introspects the token, then loads the account behind it.
func (g *Google) Authenticate(ctx context.Context, accessToken string) (*Identity, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, apperr.ErrInvalidExternal
	}

	info, err := g.Introspect(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if g.clientID != "" && info.Audience != g.clientID {
		return nil, apperr.New(apperr.KindInvalidExternalToken, "Google token was issued for another client")
	}
	if info.ExpiresIn <= 0 {
		return nil, apperr.New(apperr.KindInvalidExternalToken, "Google token expired")
	}

	user, err := g.UserInfo(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if user.Email == "" {
		return nil, apperr.Validation("Google account has no email")
	}
	if !user.EmailVerified {
		return nil, apperr.Validation("Google account email is not verified")
	}
	if user.Subject == "" {
		return nil, apperr.Validation("Google response has no account id")
	}

	return &Identity{
		ExternalID:    user.Subject,
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		Name:          strings.TrimSpace(user.Name),
	}, nil
}

type tokenInfoResponse struct {
	Aud       string      `json:"aud"`
	ExpiresIn json.Number `json:"expires_in"`
}

func (g *Google) Introspect(ctx context.Context, accessToken string) (*TokenInfo, error) {
	endpoint := g.tokenInfoURL + "?access_token=" + url.QueryEscape(accessToken)

	var resp tokenInfoResponse
	if err := g.getJSON(ctx, endpoint, "", &resp); err != nil {
		return nil, err
	}

	expiresIn, _ := strconv.Atoi(resp.ExpiresIn.String())
	return &TokenInfo{Audience: resp.Aud, ExpiresIn: expiresIn}, nil
}

type userInfoResponse struct {
	Sub           string   `json:"sub"`
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
}

func (g *Google) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	var resp userInfoResponse
	if err := g.getJSON(ctx, g.userInfoURL, accessToken, &resp); err != nil {
		return nil, err
	}
	return &UserInfo{
		Subject:       resp.Sub,
		Email:         resp.Email,
		EmailVerified: bool(resp.EmailVerified),
		Name:          resp.Name,
	}, nil
}

// getJSON maps 4xx to an invalid token and transport trouble or 5xx to
// ExternalServiceUnavailable. Provider bodies never reach the caller.
func (g *Google) getJSON(ctx context.Context, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return apperr.Internal(fmt.Errorf("google: build request: %w", err))
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return apperr.Unavailable("Google is unavailable. Try again shortly", fmt.Errorf("google: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Unavailable("Google is unavailable. Try again shortly", fmt.Errorf("google: read body: %w", err))
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return apperr.Unavailable("Google is unavailable. Try again shortly",
			fmt.Errorf("google: status %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return apperr.Wrap(apperr.KindInvalidExternalToken, apperr.ErrInvalidExternal.Message,
			fmt.Errorf("google: status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Wrap(apperr.KindInvalidExternalToken, apperr.ErrInvalidExternal.Message,
			fmt.Errorf("google: decode: %w", err))
	}
	return nil
}

// flexBool accepts true, "true" and their false counterparts.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`:
		*b = true
	case "false", `"false"`, "null", `""`:
		*b = false
	default:
		return errors.New("oauth: invalid boolean")
	}
	return nil
}
