package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	CookieName         = "carshow_admin"
	DefaultSessionTTL  = 12 * time.Hour
	DefaultIdleTimeout = 2 * time.Hour
)

var (
	ErrNoSession      = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionIdle    = errors.New("session timed out after inactivity")
)

// Car-show words for generated passwords
var showWords = []string{
	"chrome", "hotrod", "piston", "gasket", "fender",
	"muscle", "classic", "coupe", "torque", "camshaft",
	"roadster", "convertible", "tailfin", "hubcap", "carburetor",
	"v8", "turbo", "ragtop", "whitewall",
}

// Session is an authenticated admin session. Admin operations receive it
// explicitly and call Check before doing anything irreversible.
type Session struct {
	Token     string        `json:"-"`
	IssuedAt  time.Time     `json:"issued_at"`
	LastSeen  time.Time     `json:"last_seen"`
	ExpiresAt time.Time     `json:"expires_at"`
	Idle      time.Duration `json:"-"`
}

// Check reports whether the session is still usable at now.
func (s *Session) Check(now time.Time) error {
	if s == nil {
		return ErrNoSession
	}
	if !now.Before(s.ExpiresAt) {
		return ErrSessionExpired
	}
	if s.Idle > 0 && now.Sub(s.LastSeen) > s.Idle {
		return ErrSessionIdle
	}
	return nil
}

// Option configures Auth.
type Option func(*Auth)

// WithSessionTTL sets the absolute session lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(a *Auth) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithIdleTimeout sets how long a session may go unused. Zero disables it.
func WithIdleTimeout(idle time.Duration) Option {
	return func(a *Auth) {
		a.idle = idle
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(a *Auth) {
		a.clock = clock
	}
}

// Auth handles admin authentication
type Auth struct {
	password string
	ttl      time.Duration
	idle     time.Duration
	clock    func() time.Time
	sessions map[string]*Session
	mu       sync.Mutex
}

// New creates a new Auth instance with the given password
func New(password string, opts ...Option) *Auth {
	a := &Auth{
		password: password,
		ttl:      DefaultSessionTTL,
		idle:     DefaultIdleTimeout,
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = showWords[randomInt(len(showWords))]
	}
	return strings.Join(words, "-")
}

// Login validates the password and opens a session.
func (a *Auth) Login(password string) (*Session, bool) {
	if a.password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) != 1 {
		return nil, false
	}

	now := a.clock()
	sess := &Session{
		Token:     generateToken(),
		IssuedAt:  now,
		LastSeen:  now,
		ExpiresAt: now.Add(a.ttl),
		Idle:      a.idle,
	}

	a.mu.Lock()
	a.sessions[sess.Token] = sess
	a.mu.Unlock()

	copied := *sess
	return &copied, true
}

// Logout invalidates a session token
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// Authenticate validates a token, refreshes its idle clock, and returns a
// snapshot of the session. Expired sessions are dropped.
func (a *Auth) Authenticate(token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()

	sess, ok := a.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	if err := sess.Check(now); err != nil {
		delete(a.sessions, token)
		return nil, err
	}
	sess.LastSeen = now

	copied := *sess
	return &copied, nil
}

// ActiveSessions returns how many unexpired sessions exist.
func (a *Auth) ActiveSessions() int {
	now := a.clock()
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for token, sess := range a.sessions {
		if sess.Check(now) != nil {
			delete(a.sessions, token)
			continue
		}
		n++
	}
	return n
}

// Now returns the auth clock's current time.
func (a *Auth) Now() time.Time {
	return a.clock()
}

// SessionFromRequest extracts and validates the session cookie.
func (a *Auth) SessionFromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, ErrNoSession
	}
	return a.Authenticate(cookie.Value)
}

type contextKey struct{}

// NewContext returns a context carrying the session.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by RequireAuthAPI.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok && sess != nil
}

// RequireAuthAPI middleware for API endpoints (returns 401)
func (a *Auth) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.SessionFromRequest(r)
		if err == nil {
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), sess)))
			return
		}
		if errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrSessionIdle) {
			ClearSessionCookie(w)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - please log in"}`))
	})
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  sess.ExpiresAt,
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// generateToken creates a random session token
func generateToken() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	bytes := make([]byte, 1)
	rand.Read(bytes)
	return int(bytes[0]) % max
}
