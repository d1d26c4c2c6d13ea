package access

import (
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned for an unknown identity or wrong secret.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession is returned when a session id is unknown or was logged out.
	ErrNoSession = errors.New("no such session")
)

// Credentials maps identity to its credential-check string. A value that
// looks like a bcrypt hash is verified with bcrypt, anything else is compared
// in constant time.
type Credentials map[string]string

// Check verifies secret for identity.
func (c Credentials) Check(identity, secret string) error {
	want, ok := c[identity]
	if !ok || want == "" {
		return ErrInvalidCredentials
	}
	if isBcryptHash(want) {
		if err := bcrypt.CompareHashAndPassword([]byte(want), []byte(secret)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(secret)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// Teachers returns every identity except the admin.
func (c Credentials) Teachers() []string {
	out := make([]string, 0, len(c))
	for id := range c {
		if id != AdminIdentity {
			out = append(out, id)
		}
	}
	return out
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Role of a chat turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one chat message.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Session is created on login and removed on logout. Its chat history only
// grows.
type Session struct {
	ID        string
	Identity  string
	CreatedAt time.Time

	mu      sync.Mutex
	history []Turn
}

// Append adds a turn to the history.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{Role: role, Content: content, At: time.Now()})
}

// History returns a copy of the chat history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// IsAdmin reports whether the session belongs to the admin.
func (s *Session) IsAdmin() bool { return s.Identity == AdminIdentity }

// SessionStore keeps live sessions in memory. Nothing survives a restart.
type SessionStore struct {
	creds Credentials

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore returns an empty store checking logins against creds.
func NewSessionStore(creds Credentials) *SessionStore {
	return &SessionStore{creds: creds, sessions: map[string]*Session{}}
}

// Login checks the credentials and opens a new session with empty history.
func (st *SessionStore) Login(identity, secret string) (*Session, error) {
	identity = strings.ToLower(strings.TrimSpace(identity))
	if err := st.creds.Check(identity, secret); err != nil {
		return nil, err
	}
	s := &Session{ID: uuid.NewString(), Identity: identity, CreatedAt: time.Now()}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s, nil
}

// Get returns the live session with id.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNoSession
	}
	return s, nil
}

// Logout tears the session down. Unknown ids are not an error.
func (st *SessionStore) Logout(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
