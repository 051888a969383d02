// Package session issues the visitor session cookie. The cookie carries a
// signed JWT whose subject is the session id used to key all stored values.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

const CookieName = "qm_session"

var ErrInvalidToken = errors.New("invalid session token")

type Session struct {
	ID    string
	Email string
	// Token is the bearer token for the remote API, empty for guests.
	Token string
}

type claims struct {
	Email string `json:"email,omitempty"`
	Token string `json:"token,omitempty"`
	jwt.StandardClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	log    *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewManager(secret string, ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		log:    log.With("component", "session"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Secure marks issued cookies as HTTPS only.
func (m *Manager) Secure(secure bool) *Manager {
	m.secure = secure
	return m
}

func (m *Manager) Sign(s *Session) (string, error) {
	now := m.now()
	c := claims{
		Email: s.Email,
		Token: s.Token,
		StandardClaims: jwt.StandardClaims{
			Subject:   s.ID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(m.ttl).Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

func (m *Manager) Parse(raw string) (*Session, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Session{ID: c.Subject, Email: c.Email, Token: c.Token}, nil
}

// Write stores s in the response cookie.
func (m *Manager) Write(w http.ResponseWriter, s *Session) error {
	signed, err := m.Sign(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  m.now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Middleware attaches the visitor session to the request context, issuing a
// new one when the cookie is missing or invalid.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s *Session
		if cookie, err := r.Cookie(CookieName); err == nil {
			s, err = m.Parse(cookie.Value)
			if err != nil {
				m.log.DebugContext(r.Context(), "discarding session cookie", "error", err)
			}
		}
		if s == nil {
			s = &Session{ID: m.newID()}
			if err := m.Write(w, s); err != nil {
				m.log.ErrorContext(r.Context(), "failed to issue session", "error", err)
				http.Error(w, "session unavailable", http.StatusInternalServerError)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
	})
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
