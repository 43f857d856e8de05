package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeUsersFile(t *testing.T, username, password string) string {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "users.yaml")
	content := "users:\n  - username: " + username + "\n    password: \"" + hash + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestBasicAuth_Authenticate(t *testing.T) {
	a, err := NewBasicAuth(writeUsersFile(t, "admin", "s3cret"), newTestLogger())
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid credentials", username: "admin", password: "s3cret"},
		{name: "wrong password", username: "admin", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "guest", password: "s3cret", wantErr: ErrInvalidCredentials},
		{name: "no credentials", wantErr: ErrMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/install", nil)
			if tt.username != "" {
				req.SetBasicAuth(tt.username, tt.password)
			}
			user, err := a.Authenticate(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
		})
	}
}

func TestBasicAuth_Middleware(t *testing.T) {
	a, err := NewBasicAuth(writeUsersFile(t, "admin", "s3cret"), newTestLogger())
	require.NoError(t, err)

	var seen string
	h := a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			seen = u.Username
		}
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, Challenge, rr.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", "s3cret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "admin", seen)
}

func TestNewBasicAuth_Errors(t *testing.T) {
	_, err := NewBasicAuth(filepath.Join(t.TempDir(), "missing.yaml"), newTestLogger())
	assert.ErrorContains(t, err, "failed to read users file")

	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: [\n"), 0600))
	_, err = NewBasicAuth(path, newTestLogger())
	assert.ErrorContains(t, err, "invalid YAML syntax")
}

func TestReadBasicAuth_Validation(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	tests := []struct {
		name    string
		doc     string
		users   int
		wantErr string
	}{
		{name: "empty document", doc: "", users: 0},
		{name: "two operators", doc: "users:\n  - {username: a, password: \"" + hash + "\"}\n  - {username: b, password: \"" + hash + "\"}\n", users: 2},
		{name: "plain text password", doc: "users:\n  - {username: a, password: s3cret}\n", wantErr: "not a bcrypt hash"},
		{name: "missing username", doc: "users:\n  - {password: \"" + hash + "\"}\n", wantErr: "user 1 has no username"},
		{name: "duplicate", doc: "users:\n  - {username: a, password: \"" + hash + "\"}\n  - {username: a, password: \"" + hash + "\"}\n", wantErr: "listed twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ReadBasicAuth(strings.NewReader(tt.doc), newTestLogger())
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, a.hashes, tt.users)
		})
	}
}

func TestNoAuth(t *testing.T) {
	a := NewNoAuth()
	user, err := a.Authenticate(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "anonymous", user.Username)

	var seen *User
	a.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, seen)
	assert.Equal(t, "anonymous", seen.Username)
}
