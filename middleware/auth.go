package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"sync"
	"time"
)

const CookieName = "session_token"

type contextKey struct{}

type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	ttl      time.Duration

	username string
	password string
	onExpire func(token string)
	now      func() time.Time
}

// NewSessionManager accepts logins for one static username/password pair.
// onExpire, if set, is called for every session that is deleted.
func NewSessionManager(username, password string, ttl time.Duration, onExpire func(token string)) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		username: username,
		password: password,
		onExpire: onExpire,
		now:      time.Now,
	}
}

func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// ValidateCredentials compares in constant time. An empty configured
// password disables login entirely.
func (sm *SessionManager) ValidateCredentials(username, password string) bool {
	if sm.password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(sm.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(sm.password)) == 1
	return userOK && passOK
}

func (sm *SessionManager) CreateSession(username string) (*Session, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	session := &Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
	}

	sm.sessions[token] = session
	return session, nil
}

func (sm *SessionManager) ValidateSession(token string) bool {
	sm.mu.RLock()
	session, exists := sm.sessions[token]
	sm.mu.RUnlock()

	if !exists {
		return false
	}
	if sm.now().After(session.ExpiresAt) {
		sm.DeleteSession(token)
		return false
	}
	return true
}

func (sm *SessionManager) DeleteSession(token string) {
	sm.mu.Lock()
	_, existed := sm.sessions[token]
	delete(sm.sessions, token)
	sm.mu.Unlock()

	if existed && sm.onExpire != nil {
		sm.onExpire(token)
	}
}

func (sm *SessionManager) CleanExpiredSessions() int {
	sm.mu.Lock()
	now := sm.now()
	var expired []string
	for token, session := range sm.sessions {
		if now.After(session.ExpiresAt) {
			delete(sm.sessions, token)
			expired = append(expired, token)
		}
	}
	sm.mu.Unlock()

	if sm.onExpire != nil {
		for _, token := range expired {
			sm.onExpire(token)
		}
	}
	return len(expired)
}

// StartCleanup removes expired sessions every interval until ctx is done.
func (sm *SessionManager) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sm.CleanExpiredSessions()
			}
		}
	}()
}

// RequireSession rejects requests without a valid session cookie. API calls get
// 401, pages are redirected to /login.
func (sm *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || !sm.ValidateSession(cookie.Value) {
			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionToken returns the token stored by RequireSession.
func SessionToken(ctx context.Context) string {
	token, _ := ctx.Value(contextKey{}).(string)
	return token
}
