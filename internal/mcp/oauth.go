package mcp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	cfg "github.com/lunardrift/lunardrift/internal/config"
)

const (
	defaultRedirectPort = 8080
	defaultScopes       = "tools:read tools:execute"
	callbackTimeout     = 3 * time.Minute
	tokenTimeout        = 20 * time.Second
)

// Authenticator runs the OAuth 2.1 authorization-code flow with PKCE for one
// MCP server and persists the result through the credential store.
type Authenticator struct {
	server  string
	baseURL string
	auth    cfg.MCPAuthConfig
	store   *cfg.CredentialStore

	httpClient *http.Client

	// openBrowser is the side effect of presenting the authorization URL.
	// Swappable in tests.
	openBrowser func(url string) error

	// waitTimeout bounds the callback listener. Swappable in tests.
	waitTimeout time.Duration
}

// NewAuthenticator builds an authenticator for server, or nil when the
// server's config carries no auth block (no client id, secret, or scopes).
func NewAuthenticator(server string, sc ServerConfig, store *cfg.CredentialStore) *Authenticator {
	a := sc.Auth
	if a.ClientID == "" && a.ClientSecret == "" && len(a.Scopes) == 0 {
		return nil
	}
	base := authBaseURL(sc)
	if base == "" {
		slog.Warn("MCP server has auth config but no derivable base URL, skipping auth", "server", server)
		return nil
	}
	return &Authenticator{
		server:      server,
		baseURL:     base,
		auth:        a,
		store:       store,
		httpClient:  &http.Client{Timeout: tokenTimeout},
		openBrowser: openBrowser,
		waitTimeout: callbackTimeout,
	}
}

// CachedToken returns the persisted access token, if any.
func (a *Authenticator) CachedToken() string {
	return a.store.Get(a.server).AccessToken
}

// EnsureToken returns the cached token or runs the full flow.
func (a *Authenticator) EnsureToken(ctx context.Context) (string, error) {
	if token := a.CachedToken(); token != "" {
		return token, nil
	}
	return a.Authenticate(ctx)
}

// Reauthenticate discards the cached token and runs the full flow again.
// Called once per failed request when a server answers 401.
func (a *Authenticator) Reauthenticate(ctx context.Context) (string, error) {
	if err := a.store.ClearAccessToken(a.server); err != nil {
		return "", err
	}
	return a.Authenticate(ctx)
}

// Authenticate executes the authorization-code flow: PKCE challenge,
// browser hand-off, one-shot loopback callback, state check, token exchange.
// A state mismatch or callback timeout fails the flow; no token is issued.
func (a *Authenticator) Authenticate(ctx context.Context) (string, error) {
	clientID, clientSecret, err := a.clientCredentials(ctx)
	if err != nil {
		return "", err
	}

	verifier, err := newCodeVerifier()
	if err != nil {
		return "", err
	}
	challenge := challengeS256(verifier)
	state := uuid.NewString()

	port := a.auth.RedirectPort
	if port == 0 {
		port = defaultRedirectPort
	}
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/", port)

	scopes := strings.Join(a.auth.Scopes, " ")
	if scopes == "" {
		scopes = defaultScopes
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"scope":                 {scopes},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	authURL := a.baseURL + "/authorize?" + params.Encode()

	results, shutdown, err := startCallbackListener(port)
	if err != nil {
		return "", fmt.Errorf("start OAuth callback listener: %w", err)
	}
	defer shutdown()

	slog.Info("Waiting for browser authorization", "server", a.server, "url", authURL)
	if err := a.openBrowser(authURL); err != nil {
		slog.Warn("Could not open browser, open the URL manually", "err", err)
	}

	var cb callbackResult
	select {
	case cb = <-results:
	case <-time.After(a.waitTimeout):
		return "", fmt.Errorf("%w: no authorization callback received", ErrTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if cb.code == "" {
		return "", fmt.Errorf("authorization for %q failed: callback carried no code", a.server)
	}
	if cb.state != state {
		// Fail closed: a foreign state means the code was not issued for
		// this flow.
		return "", fmt.Errorf("authorization for %q failed: state mismatch", a.server)
	}

	token, err := a.exchangeCode(ctx, cb.code, verifier, clientID, clientSecret, redirectURI)
	if err != nil {
		return "", err
	}
	if err := a.store.SetAccessToken(a.server, token); err != nil {
		return "", fmt.Errorf("persist access token: %w", err)
	}
	slog.Info("Obtained access token", "server", a.server)
	return token, nil
}

// Authenticate runs the full OAuth flow for a configured server, discarding
// any cached token first. Used by the CLI's auth command.
func Authenticate(ctx context.Context, server string, sc cfg.MCPServerConfig, store *cfg.CredentialStore) error {
	auth := NewAuthenticator(server, toServerConfig(sc), store)
	if auth == nil {
		return fmt.Errorf("server %q has no usable auth configuration", server)
	}
	_, err := auth.Reauthenticate(ctx)
	return err
}

// clientCredentials resolves the OAuth client id and secret: stored
// registration first, static config second, dynamic registration last.
func (a *Authenticator) clientCredentials(ctx context.Context) (string, string, error) {
	stored := a.store.Get(a.server)
	if stored.ClientID != "" {
		return stored.ClientID, stored.ClientSecret, nil
	}
	if a.auth.ClientID != "" {
		return a.auth.ClientID, a.auth.ClientSecret, nil
	}
	return a.register(ctx)
}

// register performs dynamic client registration against {base}/register and
// persists the issued credentials.
func (a *Authenticator) register(ctx context.Context) (string, string, error) {
	port := a.auth.RedirectPort
	if port == 0 {
		port = defaultRedirectPort
	}
	payload := map[string]any{
		"client_name":      "lunardrift",
		"software_id":      "lunardrift",
		"software_version": "0.1.0",
		"redirect_uris":    []string{fmt.Sprintf("http://127.0.0.1:%d/", port)},
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/register", strings.NewReader(string(data)))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("register client with %q: %w", a.server, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("register client with %q: HTTP %d: %s", a.server, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reg struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(body, &reg); err != nil || reg.ClientID == "" {
		return "", "", fmt.Errorf("register client with %q: response carried no client_id", a.server)
	}
	if err := a.store.SetClient(a.server, reg.ClientID, reg.ClientSecret); err != nil {
		return "", "", fmt.Errorf("persist client registration: %w", err)
	}
	slog.Info("Registered OAuth client", "server", a.server, "clientId", reg.ClientID)
	return reg.ClientID, reg.ClientSecret, nil
}

// exchangeCode trades the authorization code for an access token. A
// configured client secret goes into HTTP Basic auth rather than the form
// body.
func (a *Authenticator) exchangeCode(ctx context.Context, code, verifier, clientID, clientSecret, redirectURI string) (string, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {clientID},
		"code_verifier": {verifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if clientSecret != "" {
		req.SetBasicAuth(clientID, clientSecret)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange with %q: %w", a.server, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange with %q: HTTP %d: %s", a.server, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("token exchange with %q: response carried no access_token", a.server)
	}
	return tok.AccessToken, nil
}

// ---------------------------------------------------------------------------
// PKCE and callback plumbing
// ---------------------------------------------------------------------------

// newCodeVerifier returns a cryptographically random, URL-safe verifier.
func newCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// challengeS256 derives the S256 code challenge: padding-stripped URL-safe
// base64 of the verifier's SHA-256 digest.
func challengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type callbackResult struct {
	code  string
	state string
}

// startCallbackListener binds the loopback redirect listener. The handler
// accepts exactly one GET, reports success to the browser, and delivers the
// query parameters on the returned channel.
func startCallbackListener(port int) (<-chan callbackResult, func(), error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, nil, err
	}

	results := make(chan callbackResult, 1)
	var once sync.Once
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		once.Do(func() {
			results <- callbackResult{code: q.Get("code"), state: q.Get("state")}
		})
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<h1>Authorization successful!</h1><p>You can close this window now.</p>")
	})}

	go srv.Serve(ln) //nolint:errcheck

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return results, shutdown, nil
}

// openBrowser opens url in the user's default browser.
func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
