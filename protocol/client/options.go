package client

import "net/http"

// Option configures a Client during construction.
type Option func(*Client) error

// WithBasicAuth sets HTTP Basic Auth credentials, used by AUR mirrors
// that sit behind an authenticating proxy.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) error {
		c.basicAuthUser = username
		c.basicAuthPass = password
		c.hasBasicAuth = true
		return nil
	}
}

// WithTokenAuth sets the raw Authorization header value. Callers must
// include any required scheme prefix ("Bearer ", "token ") themselves.
func WithTokenAuth(token string) Option {
	return func(c *Client) error {
		c.tokenAuth = &token
		return nil
	}
}

// WithHTTPClient overrides the http.Client used for requests, e.g. to
// set custom timeouts or a transport with connection pooling tuned for
// many short-lived harvests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		c.client = httpClient
		return nil
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}
