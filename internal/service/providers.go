package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	githubUserURL     = "https://api.github.com/user"
	githubEmailsURL   = "https://api.github.com/user/emails"
)

// googleProvider implements Provider for Google sign-in
type googleProvider struct {
	config  *oauth2.Config
	timeout time.Duration
}

// NewGoogleProvider creates the Google OAuth provider
func NewGoogleProvider(clientID, clientSecret, redirectURL string, timeout time.Duration) Provider {
	return &googleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		timeout: timeout,
	}
}

func (g *googleProvider) Name() string {
	return "google"
}

func (g *googleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

func (g *googleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := boundedContext(ctx, g.timeout)
	defer cancel()
	return g.config.Exchange(ctx, code)
}

func (g *googleProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	ctx, cancel := boundedContext(ctx, g.timeout)
	defer cancel()

	var info struct {
		Sub           string `json:"sub"`
		ID            string `json:"id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := fetchJSON(ctx, g.config.Client(ctx, token), googleUserInfoURL, &info); err != nil {
		return nil, err
	}

	// Some responses omit sub; the legacy id field carries the same value.
	id := info.Sub
	if id == "" {
		id = info.ID
	}
	if id == "" {
		return nil, fmt.Errorf("google profile has no subject identifier")
	}

	return &Profile{
		ID:            id,
		Email:         info.Email,
		Name:          info.Name,
		EmailVerified: info.EmailVerified,
	}, nil
}

// githubProvider implements Provider for GitHub sign-in
type githubProvider struct {
	config  *oauth2.Config
	timeout time.Duration
}

// NewGitHubProvider creates the GitHub OAuth provider
func NewGitHubProvider(clientID, clientSecret, redirectURL string, timeout time.Duration) Provider {
	return &githubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoints.GitHub,
			Scopes:       []string{"read:user", "user:email"},
		},
		timeout: timeout,
	}
}

func (g *githubProvider) Name() string {
	return "github"
}

func (g *githubProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *githubProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := boundedContext(ctx, g.timeout)
	defer cancel()
	return g.config.Exchange(ctx, code)
}

func (g *githubProvider) FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error) {
	ctx, cancel := boundedContext(ctx, g.timeout)
	defer cancel()

	client := g.config.Client(ctx, token)

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := fetchJSON(ctx, client, githubUserURL, &user); err != nil {
		return nil, err
	}

	profile := &Profile{
		ID:            strconv.FormatInt(user.ID, 10),
		Email:         user.Email,
		Name:          user.Name,
		EmailVerified: true,
	}
	if profile.Name == "" {
		profile.Name = user.Login
	}

	// The public profile email may be hidden; fall back to the primary
	// address from the emails endpoint.
	if profile.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := fetchJSON(ctx, client, githubEmailsURL, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary {
				profile.Email = e.Email
				profile.EmailVerified = e.Verified
				break
			}
		}
	}

	if profile.Email == "" {
		return nil, fmt.Errorf("github profile has no email address")
	}

	return profile, nil
}

func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s returned status %d", url, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}

	return nil
}
