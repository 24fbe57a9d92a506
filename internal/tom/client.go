package tom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"oracletom/internal/logging"
	"oracletom/internal/services"
)

// DefaultURL is the ELAsTiCC2 TOM instance.
const DefaultURL = "https://desc-tom-2.lbl.gov"

const (
	loginPage         = "accounts/login/"
	csrfCookieName    = "csrftoken"
	csrfHeaderName    = "X-CSRFToken"
	loginFailedMarker = "Please enter a correct"
	errorBodyLimit    = 4096
)

// ErrNotConnected is returned when a request is issued before Connect succeeds.
var ErrNotConnected = errors.New("tom client not connected")

// Client sends authenticated requests to the TOM.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
	connected  bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. The client's cookie jar is
// replaced so the Django session stays private to this Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			clone := *client
			c.httpClient = &clone
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a TOM client. It does not contact the server; call Connect.
func New(baseURL, username, password string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "tom", "parse url", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tom", "parse url", fmt.Sprintf("%q is not an absolute URL", baseURL), nil)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tom", "new client", "username required", nil)
	}
	if password == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tom", "new client", "must give either password or password file", nil)
	}

	client := &Client{
		baseURL:    parsed,
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client.httpClient.Jar = jar
	client.logger = logging.NewComponentLogger(client.logger, "tom")
	return client, nil
}

// BaseURL returns the portal base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Connect performs the Django login dance and must succeed before any Request.
func (c *Client) Connect(ctx context.Context) error {
	loginURL := c.pageURL(loginPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tom", "connect", c.baseURL.Host, err)
	}
	drain(resp)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrTransient, "tom", "connect",
			fmt.Sprintf("got status %d from first attempt to connect to %s", resp.StatusCode, c.BaseURL()), nil)
	}
	token := c.csrfToken()
	if token == "" {
		return services.Wrap(services.ErrAuthentication, "tom", "connect", "login page did not set a csrftoken cookie", nil)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("csrfmiddlewaretoken", token)
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Django rejects HTTPS form posts without a same-origin Referer.
	req.Header.Set("Referer", loginURL)

	started := time.Now()
	resp, err = c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tom", "login", c.baseURL.Host, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read login response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.ErrAuthentication, "tom", "login", fmt.Sprintf("failed to log in; http status: %d", resp.StatusCode), nil)
	}
	// The login view re-renders the form with this message on bad credentials;
	// there is no machine-readable failure signal.
	if bytes.Contains(body, []byte(loginFailedMarker)) {
		return services.Wrap(services.ErrAuthentication, "tom", "login", "credentials rejected for user "+c.username, nil)
	}

	c.connected = true
	c.logger.Debug("logged in to tom",
		logging.String("url", c.BaseURL()),
		logging.String("username", c.username),
		logging.Duration("latency", time.Since(started)),
	)
	return nil
}

// Request sends a request to page, which is the portal URL with the base URL
// removed (e.g. "elasticc2/gethottransients"). A non-nil body is sent as JSON.
// The caller owns the response body.
func (c *Client) Request(ctx context.Context, method, page string, body any) (*http.Response, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.pageURL(page), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// Django rotates the token on login, so always read it from the jar.
	if token := c.csrfToken(); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}
	req.Header.Set("Referer", c.BaseURL()+"/")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(started)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "tom", method+" "+page, fmt.Sprintf("latency=%v", latency), err)
	}
	c.logger.Debug("tom request",
		logging.String("method", method),
		logging.String("page", page),
		logging.Int("status", resp.StatusCode),
		logging.Duration("latency", latency),
	)
	return resp, nil
}

// Get is shorthand for Request(ctx, "GET", page, nil).
func (c *Client) Get(ctx context.Context, page string) (*http.Response, error) {
	return c.Request(ctx, http.MethodGet, page, nil)
}

// Post is shorthand for Request(ctx, "POST", page, body).
func (c *Client) Post(ctx context.Context, page string, body any) (*http.Response, error) {
	return c.Request(ctx, http.MethodPost, page, body)
}

// Put is shorthand for Request(ctx, "PUT", page, body).
func (c *Client) Put(ctx context.Context, page string, body any) (*http.Response, error) {
	return c.Request(ctx, http.MethodPut, page, body)
}

// PostJSON posts in as JSON and decodes a 200 response into out. Numbers are
// kept as json.Number so 64-bit object ids survive decoding.
func (c *Client) PostJSON(ctx context.Context, page string, in, out any) error {
	resp, err := c.Post(ctx, page, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		marker := services.ErrTransient
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			marker = services.ErrAuthentication
		case http.StatusNotFound:
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, "tom", "POST "+page,
			fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	if out == nil {
		drain(resp)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", page, err)
	}
	return nil
}

func (c *Client) pageURL(page string) string {
	return c.BaseURL() + "/" + strings.TrimLeft(page, "/")
}

func (c *Client) csrfToken() string {
	for _, cookie := range c.httpClient.Jar.Cookies(c.baseURL) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
