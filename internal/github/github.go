// Package github talks to the GitHub REST API to resolve references, list
// repository trees, and fetch file bodies for analysis.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/joescharf/repolens/internal/apperr"
	"github.com/joescharf/repolens/internal/models"
)

const (
	defaultBaseURL = "https://api.github.com"

	// MaxFileSize is the hard ceiling on a single fetched file. Callers
	// holding a tree listing should compare SizeBytes against it before
	// requesting content.
	MaxFileSize = 10 * 1024 * 1024

	primaryBranch  = "main"
	fallbackBranch = "master"
)

// RepoRef identifies one repository by owner and name.
type RepoRef struct {
	Owner string
	Name  string
}

func (r RepoRef) String() string { return r.Owner + "/" + r.Name }

// Client is the content-source surface the orchestrator depends on.
type Client interface {
	ListTree(ctx context.Context, ref RepoRef) ([]models.TreeEntry, error)
	FetchFileContent(ctx context.Context, ref RepoRef, path string) (string, error)
	CheckQuota(ctx context.Context) (*models.QuotaStatus, error)
}

// HTTPClient implements Client against the GitHub REST v3 API.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithBaseURL points the client at a different API host (used by tests).
func WithBaseURL(u string) Option {
	return func(c *HTTPClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient swaps the underlying transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *HTTPClient) { c.http = h }
}

// NewClient creates a GitHub API client. The token may be empty, in which
// case requests run unauthenticated against GitHub's anonymous quota.
func NewClient(token string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: defaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Owner names are GitHub login syntax (no dots), which keeps a bare
// "host.tld/name" input from masquerading as "owner/name".
var (
	ownerPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?$`)
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ParseRepoURL extracts {owner, name} from a full GitHub URL or a bare
// "owner/name" form. A trailing ".git" and any path beyond the repository
// name are stripped. URLs on hosts other than github.com are rejected.
func ParseRepoURL(input string) (RepoRef, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return RepoRef{}, apperr.ErrInvalidReference.WithMessage("repository URL is required")
	}

	rest := input
	hadScheme := false
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(rest, scheme) {
			rest = strings.TrimPrefix(rest, scheme)
			hadScheme = true
			break
		}
	}
	switch {
	case strings.HasPrefix(rest, "github.com/"):
		rest = strings.TrimPrefix(rest, "github.com/")
	case strings.HasPrefix(rest, "www.github.com/"):
		rest = strings.TrimPrefix(rest, "www.github.com/")
	case hadScheme:
		return RepoRef{}, apperr.ErrInvalidReference.WithMessage("unsupported repository host in %q", input)
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return RepoRef{}, apperr.ErrInvalidReference.WithMessage("cannot parse repository reference %q", input)
	}
	owner := parts[0]
	name := strings.TrimSuffix(parts[1], ".git")
	if !ownerPattern.MatchString(owner) || !namePattern.MatchString(name) {
		return RepoRef{}, apperr.ErrInvalidReference.WithMessage("cannot parse repository reference %q", input)
	}
	return RepoRef{Owner: owner, Name: name}, nil
}

// get issues one API request and maps error statuses to the failure taxonomy.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return apperr.ErrUpstreamUnavailable.Wrap(err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.ErrUpstreamUnavailable.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.ErrNotFound.WithMessage("github: %s not found", path)
	case resp.StatusCode == http.StatusForbidden:
		return apperr.ErrUpstreamRateLimited
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.ErrUpstreamUnavailable.Wrap(fmt.Errorf("github: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.ErrUpstreamUnavailable.Wrap(fmt.Errorf("decode github response: %w", err))
	}
	return nil
}

type branchRaw struct {
	Commit struct {
		Commit struct {
			Tree struct {
				SHA string `json:"sha"`
			} `json:"tree"`
		} `json:"commit"`
	} `json:"commit"`
}

type treeRaw struct {
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		Size int64  `json:"size"`
		SHA  string `json:"sha"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

// resolveTreeSHA finds the root tree of the default branch, preferring
// "main" and falling back to "master" when main does not exist.
func (c *HTTPClient) resolveTreeSHA(ctx context.Context, ref RepoRef) (string, error) {
	for _, branch := range []string{primaryBranch, fallbackBranch} {
		var raw branchRaw
		err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/branches/%s", ref.Owner, ref.Name, branch), &raw)
		if err == nil {
			return raw.Commit.Commit.Tree.SHA, nil
		}
		if apperr.CodeOf(err) != apperr.ErrNotFound.Code {
			return "", err
		}
	}
	return "", apperr.ErrBranchResolution.WithMessage("neither %q nor %q exists in %s", primaryBranch, fallbackBranch, ref)
}

// ListTree returns every blob in the repository's default branch, recursively.
func (c *HTTPClient) ListTree(ctx context.Context, ref RepoRef) ([]models.TreeEntry, error) {
	sha, err := c.resolveTreeSHA(ctx, ref)
	if err != nil {
		return nil, err
	}

	var raw treeRaw
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", ref.Owner, ref.Name, sha), &raw); err != nil {
		return nil, err
	}

	entries := make([]models.TreeEntry, 0, len(raw.Tree))
	for _, t := range raw.Tree {
		if t.Type != "blob" {
			continue
		}
		entries = append(entries, models.TreeEntry{
			Path:      t.Path,
			Kind:      models.TreeEntryFile,
			SizeBytes: t.Size,
			ContentID: t.SHA,
		})
	}
	return entries, nil
}

type contentRaw struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}

// FetchFileContent downloads one file body. The path is validated against
// traversal before any request is made, and the remote-reported size is
// checked against the ceiling before the body is decoded.
func (c *HTTPClient) FetchFileContent(ctx context.Context, ref RepoRef, path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	var raw contentRaw
	escaped := (&url.URL{Path: path}).EscapedPath()
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/contents/%s", ref.Owner, ref.Name, strings.TrimPrefix(escaped, "/")), &raw); err != nil {
		return "", err
	}
	if raw.Size > MaxFileSize {
		return "", apperr.ErrFileTooLarge.WithMessage("%s is %d bytes, ceiling is %d", path, raw.Size, MaxFileSize)
	}

	if raw.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw.Content, "\n", ""))
		if err != nil {
			return "", apperr.ErrUpstreamUnavailable.Wrap(fmt.Errorf("decode %s content: %w", path, err))
		}
		return string(decoded), nil
	}
	return raw.Content, nil
}

type rateLimitRaw struct {
	Resources struct {
		Core struct {
			Limit     int   `json:"limit"`
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"core"`
	} `json:"resources"`
}

// CheckQuota probes GitHub's own rate limit for the configured token.
func (c *HTTPClient) CheckQuota(ctx context.Context) (*models.QuotaStatus, error) {
	var raw rateLimitRaw
	if err := c.get(ctx, "/rate_limit", &raw); err != nil {
		return nil, err
	}
	return &models.QuotaStatus{
		Limit:     raw.Resources.Core.Limit,
		Remaining: raw.Resources.Core.Remaining,
		ResetAt:   time.Unix(raw.Resources.Core.Reset, 0).UTC(),
	}, nil
}
