package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const maxErrorBody = 4 << 10

// Client is an HTTP client for the content platform API.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	timeout      time.Duration
}

// Option configures the Client.
type Option func(*Client)

// WithTokenURL sets the OAuth2 token endpoint used for password logins.
func WithTokenURL(u string) Option {
	return func(c *Client) { c.tokenURL = u }
}

// WithClientCredentials sets the OAuth2 client id and secret.
func WithClientCredentials(id, secret string) Option {
	return func(c *Client) { c.clientID, c.clientSecret = id, secret }
}

// WithTimeout sets the per-request timeout of session clients (default 60s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a platform client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenURL == "" {
		c.tokenURL = c.baseURL + "/oauth/token"
	}
	return c
}

// Login establishes an authenticated session. A token in creds is used as-is;
// otherwise the username and password are exchanged for a token. The session
// is verified against the profile endpoint before it is returned. Login never
// retries.
func (c *Client) Login(ctx context.Context, creds Credentials) (*Session, error) {
	base := &http.Client{Timeout: c.timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var ts oauth2.TokenSource
	if creds.Token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"})
	} else {
		if creds.Username == "" || creds.Password == "" {
			return nil, fmt.Errorf("%w: username and password are required", ErrAuthFailed)
		}
		conf := &oauth2.Config{
			ClientID:     c.clientID,
			ClientSecret: c.clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: c.tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		}
		tok, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
		if err != nil {
			return nil, classifyTokenError(err)
		}
		ts = conf.TokenSource(ctx, tok)
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = c.timeout

	var me struct {
		Username string `json:"username"`
	}
	if err := c.getJSON(ctx, client, c.baseURL+"/v1/me", &me); err != nil {
		return nil, err
	}
	return &Session{Username: me.Username, Client: client}, nil
}

// Posts streams a creator's posts in the platform's native order, following
// pagination cursors until the profile is exhausted or the consumer stops.
// A lookup or transport failure is yielded once as an error, ending the stream.
func (c *Client) Posts(ctx context.Context, sess *Session, handle string) iter.Seq2[Post, error] {
	return func(yield func(Post, error) bool) {
		if sess == nil || sess.Client == nil {
			yield(Post{}, errors.New("source: no session"))
			return
		}
		cursor := ""
		for {
			page, err := c.postsPage(ctx, sess.Client, handle, cursor)
			if err != nil {
				yield(Post{}, err)
				return
			}
			for _, p := range page.Posts {
				if !yield(p, nil) {
					return
				}
			}
			if page.NextCursor == "" || page.NextCursor == cursor {
				return
			}
			cursor = page.NextCursor
		}
	}
}

type postsPage struct {
	Posts      []Post `json:"posts"`
	NextCursor string `json:"next_cursor"`
}

func (c *Client) postsPage(ctx context.Context, client *http.Client, handle, cursor string) (*postsPage, error) {
	u := c.baseURL + "/v1/users/" + url.PathEscape(handle) + "/posts"
	if cursor != "" {
		u += "?cursor=" + url.QueryEscape(cursor)
	}
	var page postsPage
	if err := c.getJSON(ctx, client, u, &page); err != nil {
		return nil, fmt.Errorf("list posts for %s: %w", handle, err)
	}
	return &page, nil
}

// OpenVideo starts downloading a post's video. The caller must close the reader.
// The session token is only sent when the video is served by the platform host
// itself; media on any other host is fetched without credentials.
func (c *Client) OpenVideo(ctx context.Context, sess *Session, post Post) (io.ReadCloser, error) {
	if post.VideoURL == "" {
		return nil, fmt.Errorf("post %s has no video url", post.Key())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, post.VideoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	client := sess.Client
	if !c.sameHost(req.URL) {
		client = &http.Client{Timeout: c.timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

func (c *Client) sameHost(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Scheme, u.Scheme) && strings.EqualFold(base.Host, u.Host)
}

func (c *Client) getJSON(ctx context.Context, client *http.Client, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return classifyTokenError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type errorBody struct {
	Error     string `json:"error"`
	Challenge string `json:"challenge"`
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: HTTP %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusForbidden && body.Challenge != "":
		return fmt.Errorf("%w: %s", ErrChallenge, body.Challenge)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrProfileNotFound, resp.Request.URL.Path)
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

// classifyTokenError maps oauth2 token endpoint failures onto the package errors.
func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
	}
	return err
}
