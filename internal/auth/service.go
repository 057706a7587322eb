package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"iotsvc.kr/doc-chatbot/internal/store"
)

var (
	// ErrDuplicateUser indicates the username collides with a registered
	// user or a fixed administrator name.
	ErrDuplicateUser = errors.New("username already in use")
	// ErrInvalidCredentials indicates the username/password pair matched
	// neither the administrator table nor any registered user.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrMissingFields indicates a blank registration or login field.
	ErrMissingFields = errors.New("all fields are required")
)

// Fixed administrator accounts. Passwords are stored and compared in plain
// text; the whole credential scheme is explicitly insecure and internal-only.
var admins = map[string]string{
	"원창연": "1234",
	"오종하": "1234",
	"김태현": "1234",
}

// User is a registered (non-admin) credential record.
type User struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Team      string  `json:"team"`
	LastLogin *string `json:"lastLogin,omitempty"` // ISO timestamp of last successful login
}

// Session is the logged-in identity. Team is nil for administrators.
type Session struct {
	Username string  `json:"username"`
	Team     *string `json:"team"`
	IsAdmin  bool    `json:"isAdmin"`
}

// LoginPreference is the remember-login-id convenience state of the login form.
type LoginPreference struct {
	Remember bool   `json:"remember"`
	SavedID  string `json:"savedId"`
}

// Service is the credential and session store. At most one session is active
// at a time; a successful login replaces the previous one.
type Service struct {
	kv     *store.KVStore
	secret []byte
	logger *zap.Logger

	mu      sync.Mutex
	current *Session
}

func NewService(kv *store.KVStore, jwtSecret string, logger *zap.Logger) *Service {
	s := &Service{
		kv:     kv,
		secret: []byte(jwtSecret),
		logger: logger,
	}
	s.restoreSession()
	return s
}

// restoreSession picks up a persisted session across restarts.
func (s *Service) restoreSession() {
	flag, ok, err := s.kv.Get(store.KeyIsAuthenticated)
	if err != nil || !ok || flag != "true" {
		return
	}
	var sess Session
	found, err := s.kv.GetJSON(store.KeyLoggedInUser, &sess)
	if err != nil {
		s.logger.Warn("failed to restore persisted session", zap.Error(err))
		return
	}
	if found {
		s.current = &sess
	}
}

func (s *Service) loadUsers() []User {
	var users []User
	if _, err := s.kv.GetJSON(store.KeyAppUsers, &users); err != nil {
		s.logger.Warn("failed to load registered users, treating as empty", zap.Error(err))
		return nil
	}
	return users
}

func (s *Service) saveUsers(users []User) error {
	return s.kv.SetJSON(store.KeyAppUsers, users)
}

// Register creates a new user credential. Username uniqueness is a
// case-sensitive exact match against both registered users and the fixed
// administrator set.
func (s *Service) Register(username, password, team string) (*User, error) {
	if username == "" || password == "" || team == "" {
		return nil, ErrMissingFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, isAdmin := admins[username]; isAdmin {
		return nil, ErrDuplicateUser
	}
	users := s.loadUsers()
	for _, u := range users {
		if u.Username == username {
			return nil, ErrDuplicateUser
		}
	}

	user := User{Username: username, Password: password, Team: team}
	users = append(users, user)
	if err := s.saveUsers(users); err != nil {
		return nil, fmt.Errorf("failed to persist users: %w", err)
	}
	return &user, nil
}

// Login authenticates against the administrator table first, then registered
// users, and on success installs the new active session and returns a bearer
// token for it.
func (s *Service) Login(username, password string) (*Session, string, error) {
	if username == "" || password == "" {
		return nil, "", ErrMissingFields
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var sess *Session
	if pw, ok := admins[username]; ok && pw == password {
		sess = &Session{Username: username, Team: nil, IsAdmin: true}
	} else {
		users := s.loadUsers()
		for i := range users {
			if users[i].Username == username && users[i].Password == password {
				now := time.Now().Format(time.RFC3339)
				users[i].LastLogin = &now
				if err := s.saveUsers(users); err != nil {
					s.logger.Warn("failed to persist last-login update", zap.Error(err))
				}
				team := users[i].Team
				sess = &Session{Username: username, Team: &team, IsAdmin: false}
				break
			}
		}
	}
	if sess == nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := generateJWT(s.secret, username)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.current = sess
	if err := s.kv.SetJSON(store.KeyLoggedInUser, sess); err != nil {
		s.logger.Warn("failed to persist session", zap.Error(err))
	}
	if err := s.kv.Set(store.KeyIsAuthenticated, "true"); err != nil {
		s.logger.Warn("failed to persist auth flag", zap.Error(err))
	}
	return sess, token, nil
}

// Logout destroys the active session. Document, history and FAQ state persist;
// clearing the in-memory message log is the chat manager's job.
func (s *Service) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := s.kv.Remove(store.KeyLoggedInUser); err != nil {
		s.logger.Warn("failed to clear persisted session", zap.Error(err))
	}
	if err := s.kv.Remove(store.KeyIsAuthenticated); err != nil {
		s.logger.Warn("failed to clear auth flag", zap.Error(err))
	}
}

// Authenticate resolves a bearer token to the active session. Tokens for a
// superseded session are rejected even if their signature is still valid.
func (s *Service) Authenticate(token string) (*Session, error) {
	username, err := validateJWT(s.secret, token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Username != username {
		return nil, fmt.Errorf("no active session for token subject")
	}
	sess := *s.current
	return &sess, nil
}

// Current returns the active session, if any.
func (s *Service) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	sess := *s.current
	return &sess
}

// Users lists all registered users, for the admin statistics view.
func (s *Service) Users() []User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUsers()
}

// TeamCounts returns the number of registered users per team.
func (s *Service) TeamCounts() map[string]int {
	counts := make(map[string]int)
	for _, u := range s.Users() {
		counts[u.Team]++
	}
	return counts
}

// SetLoginPreference persists the remember-login-id checkbox state. The saved
// id is kept only while the preference is on and the id is non-blank.
func (s *Service) SetLoginPreference(pref LoginPreference) error {
	if !pref.Remember {
		if err := s.kv.Set(store.KeyRememberLoginID, "false"); err != nil {
			return err
		}
		return s.kv.Remove(store.KeySavedLoginID)
	}
	if err := s.kv.Set(store.KeyRememberLoginID, "true"); err != nil {
		return err
	}
	if pref.SavedID == "" {
		return s.kv.Remove(store.KeySavedLoginID)
	}
	return s.kv.Set(store.KeySavedLoginID, pref.SavedID)
}

// GetLoginPreference reads the remember-login-id state back for the login form.
func (s *Service) GetLoginPreference() LoginPreference {
	flag, _, err := s.kv.Get(store.KeyRememberLoginID)
	if err != nil || flag != "true" {
		return LoginPreference{}
	}
	saved, _, err := s.kv.Get(store.KeySavedLoginID)
	if err != nil {
		return LoginPreference{Remember: true}
	}
	return LoginPreference{Remember: true, SavedID: saved}
}
