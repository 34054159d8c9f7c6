package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oliver-JPS/Portal-com-Login/internal/auth/oauth"
	"github.com/oliver-JPS/Portal-com-Login/internal/auth/session"
)

// stateCookie carries the OAuth CSRF nonce between redirect and callback.
const stateCookie = "portal_oauth_state"

// stateTTL bounds how long an authorization redirect may stay pending.
const stateTTL = 10 * time.Minute

// Handler wires the HTTP auth endpoints to the session service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	sessions *session.Service

	// provider is nil when delegated login is not configured; the Google
	// endpoints then answer 404.
	provider oauth.Provider

	// limiter is nil when no Redis is wired; IP throttling is then off.
	limiter *LoginLimiter
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithProvider enables the delegated-login endpoints.
func WithProvider(p oauth.Provider) HandlerOption {
	return func(h *Handler) {
		if p != nil {
			h.provider = p
		}
	}
}

// WithLoginLimiter enables per-IP login throttling.
func WithLoginLimiter(l *LoginLimiter) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.limiter = l
		}
	}
}

// NewHandler constructs the HTTP boundary around a session service.
func NewHandler(log *slog.Logger, cfg Config, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if sessions == nil {
		return nil, errors.New("api: nil session service")
	}

	h := &Handler{log: log, cfg: cfg, sessions: sessions}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/logout", h.handleLogout)
	mux.HandleFunc("/auth/logout-all", h.handleLogoutAll)
	mux.HandleFunc("/auth/verify", h.handleVerify)
	mux.HandleFunc("/user/me", h.handleMe)
	if h.provider != nil {
		mux.HandleFunc("/auth/google", h.handleGoogleStart)
		mux.HandleFunc("/auth/google/callback", h.handleGoogleCallback)
	}
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	u, err := h.sessions.Register(r.Context(), req.Email, req.Password, trimPtr(req.Name))
	if err != nil {
		h.writeSessionError(w, "auth.register", err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{Success: true, User: toUserResponse(u)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if blocked, retryAfter, err := h.checkLoginThrottle(ctx, clientIP(r, h.cfg.TrustProxy)); err != nil {
		h.log.Error("auth.login.throttle.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, codeServerError, "please retry later")
		return
	} else if blocked {
		writeRateLimited(w, retryAfter)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "email and password are required")
		return
	}

	res, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeSessionError(w, "auth.login", err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		User:         toUserResponse(res.User),
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "refreshToken is required")
		return
	}

	res, err := h.sessions.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeSessionError(w, "auth.refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{
		Success:     true,
		AccessToken: res.AccessToken,
		ExpiresIn:   res.ExpiresIn,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if _, ok := h.requireAuth(w, r); !ok {
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
			return
		}
	}

	// Best-effort: an unknown or already-revoked token still logs out.
	h.sessions.Logout(r.Context(), req.RefreshToken)
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	if err := h.sessions.LogoutAll(r.Context(), claims.UserID); err != nil {
		h.writeSessionError(w, "auth.logout_all", err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Success: true,
		Valid:   true,
		User: verifiedUser{
			ID:    claims.UserID,
			Email: claims.Email,
			Name:  claims.Name,
		},
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.requireAuth(w, r)
	if !ok {
		return
	}

	u, err := h.sessions.User(r.Context(), claims.UserID)
	if err != nil {
		h.writeSessionError(w, "auth.me", err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{Success: true, User: toUserResponse(u)})
}

func (h *Handler) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state := oauth.NewState()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(stateCookie)
	if err != nil || state == "" || cookie.Value != state {
		writeError(w, http.StatusBadRequest, codeOAuthFailed, "state mismatch")
		return
	}
	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, codeOAuthFailed, "missing authorization code")
		return
	}

	ctx := r.Context()
	ext, err := h.provider.Exchange(ctx, code)
	if err != nil {
		h.log.Warn("auth.oauth.exchange.fail", "provider", h.provider.Name(), "err", err)
		writeError(w, http.StatusUnauthorized, codeOAuthFailed, "provider login failed")
		return
	}

	res, err := h.sessions.LoginExternal(ctx, ext)
	if err != nil {
		h.writeSessionError(w, "auth.oauth", err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Success:      true,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
		User:         toUserResponse(res.User),
	})
}

// ---- helpers ----

// writeSessionError maps the session error taxonomy onto the wire contract.
func (h *Handler) writeSessionError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, session.ErrValidation):
		var verr session.ValidationError
		msg := "invalid input"
		if errors.As(err, &verr) {
			msg = verr.Msg
		}
		writeError(w, http.StatusBadRequest, codeValidation, msg)
	case errors.Is(err, session.ErrConflict):
		writeError(w, http.StatusConflict, codeEmailExists, "email already registered")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, codeInvalidCredentials, "invalid email or password")
	case errors.Is(err, session.ErrAccountLocked):
		writeError(w, http.StatusLocked, codeAccountLocked, "account temporarily locked, try again later")
	case errors.Is(err, session.ErrAccountDeactivated):
		writeError(w, http.StatusForbidden, codeAccountDeactivated, "account deactivated")
	case errors.Is(err, session.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, codeTokenExpired, "access token expired")
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid or expired token")
	default:
		h.log.Error(op+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, codeServerError, "internal error")
	}
}

func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.Claims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, codeInvalidToken, "missing bearer token")
		return session.Claims{}, false
	}
	claims, err := h.sessions.VerifyAccessToken(token)
	if err != nil {
		if errors.Is(err, session.ErrTokenExpired) {
			writeError(w, http.StatusUnauthorized, codeTokenExpired, "access token expired")
		} else {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "invalid token")
		}
		return session.Claims{}, false
	}
	return claims, true
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
