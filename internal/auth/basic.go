package auth

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingCredentials is returned when a request carries no basic auth
	ErrMissingCredentials = errors.New("missing basic auth credentials")

	// ErrInvalidCredentials is returned for an unknown user or a wrong
	// password; the two are not told apart to the caller
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserConfig is one operator allowed to change the installation
type UserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"` // bcrypt hash
}

// UsersFile is the users.yaml document
type UsersFile struct {
	Users []UserConfig `yaml:"users"`
}

// BasicAuth authenticates operators against bcrypt hashes
type BasicAuth struct {
	hashes map[string][]byte
	logger *slog.Logger
}

// NewBasicAuth loads the operators of usersFile
func NewBasicAuth(usersFile string, logger *slog.Logger) (*BasicAuth, error) {
	f, err := os.Open(usersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read users file: %w", err)
	}
	defer f.Close()

	a, err := ReadBasicAuth(f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", usersFile, err)
	}
	logger.Info("Basic auth initialized",
		"users_file", usersFile,
		"user_count", len(a.hashes))
	return a, nil
}

// ReadBasicAuth parses a users document. Every entry needs a username and a
// bcrypt hash; a username may appear once.
func ReadBasicAuth(r io.Reader, logger *slog.Logger) (*BasicAuth, error) {
	var doc UsersFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse users file (invalid YAML syntax): %w", err)
	}

	hashes := make(map[string][]byte, len(doc.Users))
	for i, u := range doc.Users {
		if u.Username == "" {
			return nil, fmt.Errorf("user %d has no username", i+1)
		}
		if _, dup := hashes[u.Username]; dup {
			return nil, fmt.Errorf("user %q is listed twice", u.Username)
		}
		if _, err := bcrypt.Cost([]byte(u.Password)); err != nil {
			return nil, fmt.Errorf("user %q: password is not a bcrypt hash (use umreg auth hash-password)", u.Username)
		}
		hashes[u.Username] = []byte(u.Password)
	}
	return &BasicAuth{hashes: hashes, logger: logger}, nil
}

// Authenticate validates HTTP Basic Auth credentials
func (a *BasicAuth) Authenticate(r *http.Request) (*User, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrMissingCredentials
	}

	hash, exists := a.hashes[username]
	if !exists {
		a.logger.Warn("Authentication failed: user not found",
			"username", username,
			"source_ip", r.RemoteAddr)
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		a.logger.Warn("Authentication failed: invalid password",
			"username", username,
			"source_ip", r.RemoteAddr)
		return nil, ErrInvalidCredentials
	}

	a.logger.Debug("Authentication successful",
		"username", username,
		"source_ip", r.RemoteAddr)
	return &User{Username: username}, nil
}

// Middleware rejects unauthenticated requests with a basic challenge
func (a *BasicAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := a.Authenticate(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", Challenge)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// HashPassword hashes a password for users.yaml
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
