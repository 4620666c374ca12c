// auth.go - Login, stateless session cookies and caller resolution.
//
// Login verifies credentials through account.Authenticator. When a session
// secret is configured a successful login also issues an HMAC-signed
// cookie carrying the username and role; requests presenting a valid cookie
// act as that user, and all others fall back to the identity they supply.
package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"filedesk/internal/account"
	"filedesk/internal/files"
	"filedesk/internal/logger"
)

// AuthConfig holds login and session settings used by HTTP handlers.
// An empty SessionSecret disables session cookies.
type AuthConfig struct {
	Authenticator *account.Authenticator
	SessionSecret string
	SessionTTL    time.Duration
	CookieName    string
	CookieSecure  bool

	// LoginRate and LoginBurst bound login attempts per client IP. A zero
	// rate disables the limit.
	LoginRate  rate.Limit
	LoginBurst int
}

// sessionPayload is the signed body of the session cookie.
type sessionPayload struct {
	Sub  string `json:"sub"`
	Role string `json:"role"`
	Exp  int64  `json:"exp"`
}

var (
	errBadSession     = errors.New("invalid session token")
	errSessionExpired = errors.New("session expired")
)

const maxJSONBody = 64 << 10

func (a AuthConfig) cookieName() string {
	if a.CookieName == "" {
		return "fd_session"
	}
	return a.CookieName
}

func (a AuthConfig) ttl() time.Duration {
	if a.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return a.SessionTTL
}

func (a AuthConfig) sessionsEnabled() bool {
	return a.SessionSecret != ""
}

func (a AuthConfig) sign(body string) string {
	mac := hmac.New(sha256.New, []byte(a.SessionSecret))
	_, _ = mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

// seal encodes p as "base64(json).hex(hmac)".
func (a AuthConfig) seal(p sessionPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + a.sign(body), nil
}

// open checks the signature and expiry of a sealed token.
func (a AuthConfig) open(tok string, now time.Time) (sessionPayload, error) {
	var p sessionPayload
	body, sig, ok := strings.Cut(tok, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(a.sign(body))) {
		return p, errBadSession
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return p, errBadSession
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.Sub == "" {
		return sessionPayload{}, errBadSession
	}
	if p.Exp <= now.Unix() {
		return sessionPayload{}, errSessionExpired
	}
	return p, nil
}

// issueSession returns a sealed token for sub and its expiry.
func (a AuthConfig) issueSession(sub string, role files.Role) (string, time.Time, error) {
	exp := time.Now().Add(a.ttl())
	tok, err := a.seal(sessionPayload{Sub: sub, Role: role.String(), Exp: exp.Unix()})
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// sessionCaller returns the caller carried by a valid session cookie.
func (a AuthConfig) sessionCaller(r *http.Request) (files.Caller, bool) {
	if !a.sessionsEnabled() {
		return files.Caller{}, false
	}
	c, err := r.Cookie(a.cookieName())
	if err != nil {
		return files.Caller{}, false
	}
	p, err := a.open(c.Value, time.Now())
	if err != nil {
		return files.Caller{}, false
	}
	return files.Caller{Identity: p.Sub, Role: files.ParseRole(p.Role)}, true
}

// resolveCaller prefers the session identity and otherwise trusts the
// identity supplied with the request, byte for byte.
func (a AuthConfig) resolveCaller(r *http.Request, userName, userType string) files.Caller {
	if c, ok := a.sessionCaller(r); ok {
		return c
	}
	return files.Caller{Identity: userName, Role: files.ParseRole(userType)}
}

type loginUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	FullName string `json:"fullname"`
	UserType string `json:"userType"`
}

type loginResp struct {
	Success bool      `json:"success"`
	User    loginUser `json:"user"`
}

// loginHandler verifies credentials. On success it issues a signed session
// cookie (HttpOnly, SameSite=Lax) when sessions are enabled.
func (a AuthConfig) loginHandler(log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON body"})
			return
		}
		if body.Username == "" || body.Password == "" {
			loginAttemptsTotal.WithLabelValues("invalid").Inc()
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "Username and password are required"})
			return
		}
		if a.Authenticator == nil {
			log.WithContext(r.Context()).Error("login attempted without an authenticator")
			writeJSON(w, http.StatusInternalServerError, errorResp{Error: "Login failed"})
			return
		}

		u, err := a.Authenticator.Authenticate(r.Context(), body.Username, body.Password)
		if err != nil {
			if errors.Is(err, account.ErrInvalidCredentials) {
				loginAttemptsTotal.WithLabelValues("rejected").Inc()
				log.WithContext(r.Context()).Info("login rejected", zap.String("username", body.Username))
				writeJSON(w, http.StatusUnauthorized, errorResp{Error: "Invalid username or password"})
				return
			}
			loginAttemptsTotal.WithLabelValues("error").Inc()
			log.WithContext(r.Context()).Error("login failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResp{Error: "Login failed"})
			return
		}

		if a.sessionsEnabled() {
			tok, exp, err := a.issueSession(u.Username, u.Role)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, errorResp{Error: "Login failed"})
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     a.cookieName(),
				Value:    tok,
				Path:     "/",
				Expires:  exp,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Secure:   a.CookieSecure,
			})
		}

		loginAttemptsTotal.WithLabelValues("ok").Inc()
		log.WithContext(r.Context()).Info("login", zap.String("username", u.Username), zap.Stringer("role", u.Role))
		writeJSON(w, http.StatusOK, loginResp{
			Success: true,
			User: loginUser{
				ID:       u.ID,
				Username: u.Username,
				FullName: u.FullName,
				UserType: u.UserType,
			},
		})
	}
}

// logoutHandler clears the session cookie by setting an expired cookie
func (a AuthConfig) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName(),
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Secure:   a.CookieSecure,
		})
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}
