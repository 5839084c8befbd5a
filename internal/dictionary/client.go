// Package dictionary is the HTTP client for the remote vocabulary service.
package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/fetch"
	"github.com/JakeFAU/vocabsync/internal/vocab"
)

// ErrUnauthorized is returned when the service rejects the session.
var ErrUnauthorized = errors.New("dictionary: unauthorized")

// Client talks to the dictionary API. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	credential vocab.Credential
	logger     *zap.Logger
}

var _ vocab.Dictionary = (*Client)(nil)

// New returns a Client rooted at baseURL. Requests carry credential as
// cookies.
func New(baseURL string, httpClient *http.Client, credential vocab.Credential, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse dictionary url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dictionary url %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		return nil, errors.New("dictionary: http client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{base: u, http: httpClient, credential: credential, logger: logger}, nil
}

// Words returns the whole word book.
func (c *Client) Words(ctx context.Context) ([]vocab.Word, error) {
	var words []vocab.Word
	if err := c.getJSON(ctx, c.credential, &words, "api", "words"); err != nil {
		return nil, err
	}
	return words, nil
}

// Examples returns the example sentences for term.
func (c *Client) Examples(ctx context.Context, term string) ([]vocab.Example, error) {
	var examples []vocab.Example
	if err := c.getJSON(ctx, c.credential, &examples, "api", "words", url.PathEscape(term), "examples"); err != nil {
		return nil, err
	}
	return examples, nil
}

// Translate returns the translation of text.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	var out struct {
		Translation string `json:"translation"`
	}
	query := url.Values{"text": {text}}
	if err := c.getJSONQuery(ctx, c.credential, query, &out, "api", "translate"); err != nil {
		return "", err
	}
	return out.Translation, nil
}

// CheckLogin reports whether cred is an active session.
func (c *Client) CheckLogin(ctx context.Context, cred vocab.Credential) (bool, error) {
	var account struct {
		User string `json:"user"`
	}
	err := c.getJSON(ctx, cred, &account, "api", "account")
	switch {
	case err == nil:
		c.logger.Debug("account lookup succeeded", zap.String("user", account.User))
		return true, nil
	case errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) getJSON(ctx context.Context, cred vocab.Credential, out any, segments ...string) error {
	return c.getJSONQuery(ctx, cred, nil, out, segments...)
}

// getJSONQuery GETs the path built from the already-escaped segments and
// decodes the JSON body into out.
func (c *Client) getJSONQuery(ctx context.Context, cred vocab.Credential, query url.Values, out any, segments ...string) error {
	target := c.base.JoinPath(segments...)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	header := http.Header{}
	header.Set("Accept", "application/json")
	if cookie := cookieHeader(cred); cookie != "" {
		header.Set("Cookie", cookie)
	}

	resp, err := fetch.Get(ctx, c.http, target.String(), header)
	if err != nil {
		var statusErr *fetch.StatusError
		if errors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return fmt.Errorf("%w: %w", ErrUnauthorized, err)
		}
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target.Path, err)
	}
	return nil
}

// cookieHeader renders cred as a Cookie header value with names sorted.
func cookieHeader(cred vocab.Credential) string {
	if len(cred) == 0 {
		return ""
	}
	names := make([]string, 0, len(cred))
	for name := range cred {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, (&http.Cookie{Name: name, Value: cred[name]}).String())
	}
	return strings.Join(parts, "; ")
}

// LoadCredential reads a JSON object of cookie names to values. An empty
// path yields an empty credential.
func LoadCredential(path string) (vocab.Credential, error) {
	if path == "" {
		return vocab.Credential{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	cred, err := vocab.ParseCredential(data)
	if err != nil {
		return nil, fmt.Errorf("cookie file %s: %w", path, err)
	}
	return cred, nil
}

// SaveCredential writes cred as JSON with owner-only permissions.
func SaveCredential(path string, cred vocab.Credential) error {
	serialized, err := cred.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(serialized), 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	return nil
}
