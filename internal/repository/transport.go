package repository

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Transport reads a path below a repository's base URL.
type Transport interface {
	// Fetch opens the file at path. A missing file yields an error wrapping
	// ErrNotFound.
	Fetch(ctx context.Context, repo Repository, path string) (io.ReadCloser, error)
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	// Timeout bounds a single request. Defaults to 60s.
	Timeout time.Duration
	// CaFile, CertFile and KeyFile configure TLS for private repositories.
	CaFile   string
	CertFile string
	KeyFile  string
}

// HTTPTransport fetches over http and https with optional basic auth.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates an HTTPTransport.
func NewHTTPTransport(opts HTTPOptions) (*HTTPTransport, error) {
	client, err := httpClientForOpts(opts)
	if err != nil {
		return nil, fmt.Errorf("configuring HTTP client: %w", err)
	}

	return &HTTPTransport{client: client}, nil
}

// httpClientForOpts builds an *http.Client with TLS configuration from HTTPOptions.
func httpClientForOpts(opts HTTPOptions) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.CaFile != "" || opts.CertFile != "" {
		tlsCfg := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}

		if opts.CaFile != "" {
			caCert, err := os.ReadFile(opts.CaFile) //nolint:gosec // user-provided CA path
			if err != nil {
				return nil, fmt.Errorf("reading CA file %q: %w", opts.CaFile, err)
			}

			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("CA file %q contains no valid certificates", opts.CaFile)
			}

			tlsCfg.RootCAs = pool
		}

		if opts.CertFile != "" && opts.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("loading TLS client certificate: %w", err)
			}

			tlsCfg.Certificates = []tls.Certificate{cert}
		}

		transport.TLSClientConfig = tlsCfg
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

// Fetch issues a GET for repo.URL/path.
func (t *HTTPTransport) Fetch(ctx context.Context, repo Repository, path string) (io.ReadCloser, error) {
	u := strings.TrimSuffix(repo.URL, "/") + "/" + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if repo.Username != "" && repo.Password != "" {
		req.SetBasicAuth(repo.Username, repo.Password)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", u, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound, http.StatusGone:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%q returned status %d", u, resp.StatusCode)
	}
}

// FileTransport reads file:// repositories.
type FileTransport struct{}

// Fetch opens the file below the repository directory.
func (FileTransport) Fetch(_ context.Context, repo Repository, path string) (io.ReadCloser, error) {
	u, err := url.Parse(repo.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing repository URL %q: %w", repo.URL, err)
	}

	p := filepath.Join(filepath.FromSlash(u.Path), filepath.FromSlash(path))

	f, err := os.Open(p) //nolint:gosec // path is below a configured repository
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}

		return nil, err
	}

	return f, nil
}

// MultiTransport dispatches on the repository URL scheme.
type MultiTransport struct {
	schemes map[string]Transport
}

// NewMultiTransport maps http and https to h, file to a FileTransport and s3
// to s. A nil s leaves s3 repositories unsupported.
func NewMultiTransport(h *HTTPTransport, s *S3Transport) *MultiTransport {
	m := &MultiTransport{schemes: map[string]Transport{
		"file": FileTransport{},
	}}

	if h != nil {
		m.schemes["http"] = h
		m.schemes["https"] = h
	}

	if s != nil {
		m.schemes["s3"] = s
	}

	return m
}

// Register adds or replaces the transport for scheme.
func (m *MultiTransport) Register(scheme string, t Transport) {
	m.schemes[strings.ToLower(scheme)] = t
}

// Fetch forwards to the transport registered for repo's scheme.
func (m *MultiTransport) Fetch(ctx context.Context, repo Repository, path string) (io.ReadCloser, error) {
	u, err := url.Parse(repo.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing repository URL %q: %w", repo.URL, err)
	}

	t, ok := m.schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, fmt.Errorf("repository %s: unsupported scheme %q", repo.ID, u.Scheme)
	}

	return t.Fetch(ctx, repo, path)
}
