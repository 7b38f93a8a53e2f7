package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Ambient OIDC identity, as provided by the CI runner. The request pair is
// what GitHub-hosted runners export; the file fallback covers runners that
// write the identity token to disk instead.
const (
	oidcRequestURLEnv   = "ACTIONS_ID_TOKEN_REQUEST_URL"
	oidcRequestTokenEnv = "ACTIONS_ID_TOKEN_REQUEST_TOKEN"
	oidcTokenFileEnv    = "GANTRY_ID_TOKEN_FILE"
)

const mintTimeout = 30 * time.Second

// NewTokenSource returns a source that exchanges the runner's ambient OIDC
// identity for a short-lived upload token at mintURL. Minted tokens are
// cached until expiry. No long-lived credential is read or stored.
func NewTokenSource(mintURL, audience string) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &mintSource{
		mintURL:  mintURL,
		audience: audience,
		client:   &http.Client{Timeout: mintTimeout},
	})
}

type mintSource struct {
	mintURL  string
	audience string
	client   *http.Client
}

func (s *mintSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), mintTimeout)
	defer cancel()

	identity, err := identityToken(ctx, s.client, s.audience)
	if err != nil {
		return nil, err
	}
	return s.mint(ctx, identity)
}

// mint exchanges the OIDC identity token for an upload token at the index.
func (s *mintSource) mint(ctx context.Context, identity string) (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{"token": identity})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.mintURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("minting upload token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("minting upload token", resp)
	}

	var payload struct {
		Token   string `json:"token"`
		Expires int    `json:"expires"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding mint response: %w", err)
	}
	if payload.Token == "" {
		return nil, fmt.Errorf("mint response from %s contained no token", s.mintURL)
	}

	tok := &oauth2.Token{AccessToken: payload.Token}
	if payload.Expires > 0 {
		tok.Expiry = time.Now().Add(time.Duration(payload.Expires) * time.Second)
	}
	return tok, nil
}

// identityToken obtains the runner's OIDC identity token from the ambient
// environment.
func identityToken(ctx context.Context, client *http.Client, audience string) (string, error) {
	if requestURL := os.Getenv(oidcRequestURLEnv); requestURL != "" {
		return requestIdentity(ctx, client, requestURL, os.Getenv(oidcRequestTokenEnv), audience)
	}

	if file := os.Getenv(oidcTokenFileEnv); file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading identity token file: %w", err)
		}
		token := strings.TrimSpace(string(raw))
		if token == "" {
			return "", fmt.Errorf("identity token file %s is empty", file)
		}
		return token, nil
	}

	return "", fmt.Errorf("no ambient OIDC identity: set %s and %s, or %s",
		oidcRequestURLEnv, oidcRequestTokenEnv, oidcTokenFileEnv)
}

// requestIdentity fetches an identity token from the runner's token endpoint,
// authenticated with the ambient request token.
func requestIdentity(ctx context.Context, base *http.Client, requestURL, requestToken, audience string) (string, error) {
	if requestToken == "" {
		return "", fmt.Errorf("%s is set but %s is empty", oidcRequestURLEnv, oidcRequestTokenEnv)
	}

	u, err := url.Parse(requestURL)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", oidcRequestURLEnv, err)
	}
	q := u.Query()
	q.Set("audience", audience)
	u.RawQuery = q.Encode()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: requestToken}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting identity token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", responseError("requesting identity token", resp)
	}

	var payload struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding identity token response: %w", err)
	}
	if payload.Value == "" {
		return "", fmt.Errorf("identity token endpoint returned no token")
	}
	return payload.Value, nil
}

// responseError summarizes a non-success HTTP response, including a bounded
// slice of the body so index rejections stay diagnosable.
func responseError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return fmt.Errorf("%s: %s", op, resp.Status)
	}
	return fmt.Errorf("%s: %s: %s", op, resp.Status, detail)
}
