// Package fetch opens byte streams by URL for manifest loading and remote
// registry discovery.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"oras.land/oras-go/v2/registry/remote/retry"
)

var (
	// ErrNotFound is returned when the URL does not resolve to a resource
	ErrNotFound = errors.New("resource not found")

	// ErrUnsupportedScheme is returned for URL schemes no opener handles
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
)

// IndexFile optionally lists the members of a configurations/ or components/
// directory, one per line.
const IndexFile = "install.index"

// DefaultTimeout bounds a single remote fetch
const DefaultTimeout = 30 * time.Second

// Response is an opened byte stream
type Response struct {
	Body       io.ReadCloser
	StatusCode int // HTTP status; 200 for local files
}

// Opener opens byte streams keyed by URL. A missing resource is reported as
// ErrNotFound, never as a panic.
type Opener interface {
	Open(ctx context.Context, rawURL string) (*Response, error)
}

// Lister enumerates directory members for schemes that support it
type Lister interface {
	List(ctx context.Context, dirURL string) ([]string, error)
}

// Mux dispatches by URL scheme
type Mux struct {
	file   *FileOpener
	http   *HTTPOpener
	logger *slog.Logger
}

// NewMux creates an opener for file://, http:// and https:// URLs
func NewMux(timeout time.Duration, logger *slog.Logger) *Mux {
	return &Mux{
		file:   NewFileOpener(),
		http:   NewHTTPOpener(timeout, logger),
		logger: logger,
	}
}

// Open implements Opener
func (m *Mux) Open(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "file", "":
		return m.file.Open(ctx, rawURL)
	case "http", "https":
		return m.http.Open(ctx, rawURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// List implements Lister. Only local directories can be listed; for other
// schemes an empty list is returned and callers rely on install.index.
func (m *Mux) List(ctx context.Context, dirURL string) ([]string, error) {
	u, err := url.Parse(dirURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", dirURL, err)
	}
	if u.Scheme == "file" || u.Scheme == "" {
		return m.file.List(ctx, dirURL)
	}
	return nil, nil
}

// FileOpener reads file:// URLs and plain paths
type FileOpener struct{}

// NewFileOpener creates a local file opener
func NewFileOpener() *FileOpener {
	return &FileOpener{}
}

// Open implements Opener
func (o *FileOpener) Open(ctx context.Context, rawURL string) (*Response, error) {
	path, err := LocalPath(rawURL)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
		}
		return nil, fmt.Errorf("failed to open %s: %w", rawURL, err)
	}
	return &Response{Body: f, StatusCode: http.StatusOK}, nil
}

// List implements Lister, returning sub-directory names in lexical order
func (o *FileOpener) List(ctx context.Context, dirURL string) ([]string, error) {
	path, err := LocalPath(dirURL)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dirURL, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// HTTPOpener fetches http(s) URLs with the oras retrying client
type HTTPOpener struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPOpener creates an http opener with the given per-request timeout
func NewHTTPOpener(timeout time.Duration, logger *slog.Logger) *HTTPOpener {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPOpener{
		client: &http.Client{
			Transport: retry.NewTransport(nil),
			Timeout:   timeout,
		},
		logger: logger,
	}
}

// Open implements Opener
func (o *HTTPOpener) Open(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s: %w", rawURL, err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Debug("Remote fetch failed",
			"url", rawURL,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", rawURL, resp.StatusCode)
	}

	o.logger.Debug("Remote fetch completed",
		"url", rawURL,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())
	return &Response{Body: resp.Body, StatusCode: resp.StatusCode}, nil
}

// ReadAll opens rawURL and reads it fully
func ReadAll(ctx context.Context, o Opener, rawURL string) ([]byte, error) {
	resp, err := o.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Members returns the entries of a configurations/ or components/ directory:
// the lines of its install.index when present, otherwise the directory
// listing.
func Members(ctx context.Context, o Opener, dirURL string) ([]string, error) {
	dirURL = WithTrailingSlash(dirURL)
	resp, err := o.Open(ctx, dirURL+IndexFile)
	if err == nil {
		defer resp.Body.Close()
		return parseIndex(resp.Body)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if l, ok := o.(Lister); ok {
		return l.List(ctx, dirURL)
	}
	return nil, nil
}

func parseIndex(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, strings.TrimSuffix(line, "/"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", IndexFile, err)
	}
	return names, nil
}

// LocalPath converts a file:// URL (or a bare path) to a filesystem path
func LocalPath(rawURL string) (string, error) {
	if !strings.Contains(rawURL, "://") {
		return filepath.FromSlash(rawURL), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
	path := u.Path
	if u.Host == "." {
		path = "." + path
	} else if u.Host != "" {
		path = "//" + u.Host + path
	}
	if path == "" && u.Opaque != "" {
		path = u.Opaque
	}
	return filepath.FromSlash(path), nil
}

// WithTrailingSlash makes rawURL usable as a directory base
func WithTrailingSlash(rawURL string) string {
	if strings.HasSuffix(rawURL, "/") {
		return rawURL
	}
	return rawURL + "/"
}

// Join appends path elements to a directory URL
func Join(base string, elems ...string) string {
	out := WithTrailingSlash(base)
	for i, e := range elems {
		e = strings.Trim(e, "/")
		if i < len(elems)-1 {
			out += e + "/"
		} else {
			out += e
		}
	}
	return out
}
