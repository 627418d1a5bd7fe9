package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cyp0633/calrest/server/auth"
	"golang.org/x/crypto/bcrypt"
)

// account holds the credentials of one login.
type account struct {
	userID int64
	hash   []byte // bcrypt
}

// Store checks Basic credentials against logins registered with AddUser.
// Passwords are kept as bcrypt hashes.
type Store struct {
	mu     sync.RWMutex
	users  map[string]account // by username
	cost   int
	dummy  []byte // compared against for unknown usernames
	logger *slog.Logger
}

var _ auth.Authenticator = (*Store)(nil)

// New creates a new in-memory authentication store
func New(opts ...Option) *Store {
	s := &Store{
		users:  make(map[string]account),
		cost:   bcrypt.DefaultCost,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.dummy, _ = bcrypt.GenerateFromPassword([]byte("calrest"), s.cost)
	return s
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCost sets the bcrypt cost used by AddUser. Values outside
// [bcrypt.MinCost, bcrypt.MaxCost] are ignored.
func WithCost(cost int) Option {
	return func(s *Store) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

// AddUser registers credentials for the account userID
func (s *Store) AddUser(username, password string, userID int64) error {
	if username == "" {
		return fmt.Errorf("username is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password of %s: %w", username, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		s.logger.Warn("failed to add user: already exists",
			"username", username)
		return fmt.Errorf("user already exists: %s", username)
	}

	s.users[username] = account{userID: userID, hash: hash}

	s.logger.Info("user added successfully",
		"username", username,
		"user_id", userID)

	return nil
}

// Authenticate implements auth.Authenticator. Failures are returned, not
// logged; callers report them.
func (s *Store) Authenticate(_ context.Context, creds auth.Credentials) (*auth.Principal, error) {
	s.mu.RLock()
	acc, exists := s.users[creds.Username]
	s.mu.RUnlock()

	hash := acc.hash
	if !exists {
		hash = s.dummy
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil || !exists {
		return nil, &auth.Error{
			Type:    auth.ErrInvalidCredentials,
			Message: "invalid username or password",
		}
	}

	s.logger.Debug("authentication successful",
		"username", creds.Username,
		"user_id", acc.userID)

	return &auth.Principal{UserID: acc.userID, Username: creds.Username}, nil
}
