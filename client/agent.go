package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// refreshLead is how long before access-token expiry a refresh is scheduled.
const refreshLead = 60 * time.Second

// refreshRetryDelay is how long the timer waits before retrying after a
// transient refresh failure.
const refreshRetryDelay = 5 * time.Second

var (
	// ErrNotAuthenticated is returned when no session is held, or after a
	// failed refresh has cleared it.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrServer is returned for responses the agent cannot act on.
	ErrServer = errors.New("server error")
)

// User is the identity projection returned by the portal API.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      *string    `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type loginResponse struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	User         User   `json:"user"`
}

type refreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
}

// APIError carries a machine code and message from a failed API call.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// refreshCall coalesces concurrent refresh attempts into one request.
type refreshCall struct {
	done chan struct{}
	err  error
}

// Agent holds a portal session and keeps its access token fresh.
//
// All methods are safe for concurrent use. The background refresh timer fires
// refreshLead before expiry; callers racing an expired token block on the
// same in-flight refresh rather than issuing their own.
type Agent struct {
	baseURL string
	httpc   *http.Client
	log     *slog.Logger

	now        func() time.Time
	retryDelay time.Duration

	mu       sync.Mutex
	access   string
	refresh  string
	expires  time.Time
	user     User
	timer    *time.Timer
	inflight *refreshCall

	// gen increments whenever a new access token is installed. A refresh
	// request carries the generation its caller saw; if the session has
	// moved on since, the refresh is already done and is skipped.
	gen uint64
}

// Option configures an Agent.
type Option func(*Agent)

// WithHTTPClient overrides the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Agent) {
		if c != nil {
			a.httpc = c
		}
	}
}

// WithLogger sets the agent logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		if log != nil {
			a.log = log
		}
	}
}

// New returns an Agent for the portal at baseURL, not yet authenticated.
func New(baseURL string, opts ...Option) *Agent {
	a := &Agent{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpc:      &http.Client{Timeout: 30 * time.Second},
		log:        slog.Default(),
		now:        time.Now,
		retryDelay: refreshRetryDelay,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Register creates an account. It does not log in.
func (a *Agent) Register(ctx context.Context, email, password string, name *string) (User, error) {
	body := map[string]any{"email": email, "password": password}
	if name != nil {
		body["name"] = *name
	}

	var res struct {
		Success bool `json:"success"`
		User    User `json:"user"`
	}
	if err := a.postJSON(ctx, "/auth/register", "", body, &res); err != nil {
		return User{}, err
	}
	return res.User, nil
}

// Login authenticates and installs the returned session.
func (a *Agent) Login(ctx context.Context, email, password string) (User, error) {
	var res loginResponse
	if err := a.postJSON(ctx, "/auth/login", "", map[string]any{"email": email, "password": password}, &res); err != nil {
		return User{}, err
	}

	a.mu.Lock()
	a.user = res.User
	a.installSessionLocked(res.AccessToken, res.RefreshToken)
	a.mu.Unlock()

	return res.User, nil
}

// SetSession installs a token pair obtained elsewhere, e.g. from an OAuth
// callback.
func (a *Agent) SetSession(accessToken, refreshToken string) {
	a.mu.Lock()
	a.installSessionLocked(accessToken, refreshToken)
	a.mu.Unlock()
}

// Authenticated reports whether the agent currently holds a session.
func (a *Agent) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh != ""
}

// AccessToken returns the current access token, refreshing first if it has
// expired or is inside the refresh lead.
func (a *Agent) AccessToken(ctx context.Context) (string, error) {
	token, _, err := a.freshToken(ctx)
	return token, err
}

func (a *Agent) freshToken(ctx context.Context) (string, uint64, error) {
	a.mu.Lock()
	if a.refresh == "" {
		a.mu.Unlock()
		return "", 0, ErrNotAuthenticated
	}
	access, expires, gen := a.access, a.expires, a.gen
	a.mu.Unlock()

	if access != "" && a.now().Before(expires.Add(-refreshLead)) {
		return access, gen, nil
	}

	if err := a.refreshNow(ctx, gen); err != nil {
		return "", 0, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.access == "" {
		return "", 0, ErrNotAuthenticated
	}
	return a.access, a.gen, nil
}

// User returns the identity captured at login.
func (a *Agent) User() User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user
}

// Do sends the request with a bearer access token. When the server answers
// with the TOKEN_EXPIRED code, the agent refreshes and retries exactly once;
// any other failure is returned as is.
//
// Retrying needs a rewindable body: requests with a body must have GetBody
// set, which http.NewRequest does for common body types.
func (a *Agent) Do(req *http.Request) (*http.Response, error) {
	token, gen, err := a.freshToken(req.Context())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || !isTokenExpired(resp) {
		return resp, nil
	}

	// One refresh, one retry.
	if err := a.refreshNow(req.Context(), gen); err != nil {
		return nil, err
	}
	retry, err := rewindRequest(req)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	token = a.access
	a.mu.Unlock()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	return a.httpc.Do(retry)
}

// Logout revokes the refresh token server-side (best effort) and clears the
// local session either way.
func (a *Agent) Logout(ctx context.Context) {
	a.mu.Lock()
	access := a.access
	refresh := a.refresh
	a.clearSessionLocked()
	a.mu.Unlock()

	if refresh == "" {
		return
	}
	if err := a.postJSON(ctx, "/auth/logout", access, map[string]any{"refreshToken": refresh}, &struct{}{}); err != nil {
		a.log.Debug("client.logout.revoke.fail", "err", err)
	}
}

// Close stops the background refresh timer without revoking anything.
func (a *Agent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// ---- internals ----

// installSessionLocked records the pair and arms the refresh timer.
// Caller holds a.mu.
func (a *Agent) installSessionLocked(accessToken, refreshToken string) {
	a.access = accessToken
	a.refresh = refreshToken
	a.expires = tokenExpiry(accessToken)
	a.gen++
	a.armTimerLocked()
}

// clearSessionLocked drops all session state. Caller holds a.mu.
func (a *Agent) clearSessionLocked() {
	a.access = ""
	a.refresh = ""
	a.expires = time.Time{}
	a.user = User{}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// armTimerLocked schedules the proactive refresh at expiry minus the lead,
// or immediately when already inside the lead. Caller holds a.mu.
func (a *Agent) armTimerLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.refresh == "" || a.expires.IsZero() {
		return
	}

	// The floor keeps a token whose lifetime is shorter than the lead from
	// hot-looping the timer; callers needing a token sooner refresh inline.
	delay := a.expires.Add(-refreshLead).Sub(a.now())
	if delay < time.Second {
		delay = time.Second
	}
	a.scheduleRefreshLocked(delay)
}

// scheduleRefreshLocked arms the refresh timer. A transient failure re-arms
// it after retryDelay so proactive refreshing survives network blips; a
// definitive rejection has already cleared the session. Caller holds a.mu.
func (a *Agent) scheduleRefreshLocked(delay time.Duration) {
	gen := a.gen
	a.timer = time.AfterFunc(delay, func() {
		err := a.refreshNow(context.Background(), gen)
		if err == nil || errors.Is(err, ErrNotAuthenticated) {
			return
		}
		a.log.Warn("client.refresh.fail", "err", err)
		a.mu.Lock()
		if a.gen == gen && a.refresh != "" {
			a.scheduleRefreshLocked(a.retryDelay)
		}
		a.mu.Unlock()
	})
}

// refreshNow exchanges the refresh token for a new access token. Concurrent
// callers share a single in-flight request. A definitive rejection from the
// server clears the session.
func (a *Agent) refreshNow(ctx context.Context, gen uint64) error {
	a.mu.Lock()
	if a.inflight != nil {
		call := a.inflight
		a.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.refresh == "" {
		a.mu.Unlock()
		return ErrNotAuthenticated
	}
	if a.gen != gen {
		// Another caller already installed a newer access token.
		a.mu.Unlock()
		return nil
	}
	call := &refreshCall{done: make(chan struct{})}
	a.inflight = call
	refresh := a.refresh
	a.mu.Unlock()

	var res refreshResponse
	err := a.postJSON(ctx, "/auth/refresh", "", map[string]any{"refreshToken": refresh}, &res)

	a.mu.Lock()
	a.inflight = nil
	switch {
	case err == nil:
		a.access = res.AccessToken
		a.expires = tokenExpiry(res.AccessToken)
		a.gen++
		a.armTimerLocked()
	case isAuthRejection(err):
		// The refresh token is gone; the session is over.
		a.clearSessionLocked()
		err = ErrNotAuthenticated
	}
	a.mu.Unlock()

	call.err = err
	close(call.done)
	return err
}

func (a *Agent) postJSON(ctx context.Context, path, bearer string, body any, dst any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errRes errorResponse
		if json.Unmarshal(raw, &errRes) == nil && errRes.Code != "" {
			return &APIError{Status: resp.StatusCode, Code: errRes.Code, Message: errRes.Error}
		}
		return fmt.Errorf("%w: unexpected status %d", ErrServer, resp.StatusCode)
	}

	return json.Unmarshal(raw, dst)
}

// tokenExpiry reads the exp claim without verifying the signature.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func isTokenExpired(resp *http.Response) bool {
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false
	}
	var errRes errorResponse
	if json.Unmarshal(raw, &errRes) != nil {
		// Put the body back for callers that treat this as a final response.
		resp.Body = io.NopCloser(bytes.NewReader(raw))
		return false
	}
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	return errRes.Code == "TOKEN_EXPIRED"
}

func isAuthRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

func rewindRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("cannot retry request without GetBody")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	retry.Body = body
	return retry, nil
}
