// Package client implements the HTTP transport of Git's smart protocol
// version 2: the info/refs advertisement request and the upload-pack
// fetch request. It has no knowledge of packfile contents or pkt-line
// framing beyond setting the right headers and content types; those
// live in package protocol.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ArcticLampyrid/aurmetad/log"
)

const defaultUserAgent = "aurmetad/0"

// Client speaks Git's smart-HTTP protocol v2 against a single
// repository's base URL.
type Client struct {
	base   *url.URL
	client *http.Client

	userAgent     string
	hasBasicAuth  bool
	basicAuthUser string
	basicAuthPass string
	tokenAuth     *string
}

// New creates a Client for the given repository URL, which must be
// http or https.
func New(repo string, opts ...Option) (*Client, error) {
	if repo == "" {
		return nil, errors.New("client: repository URL cannot be empty")
	}

	u, err := url.Parse(repo)
	if err != nil {
		return nil, fmt.Errorf("client: parsing repository URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("client: only http and https URLs are supported")
	}
	u.Path = strings.TrimRight(u.Path, "/")

	c := &Client{
		base:      u,
		client:    &http.Client{},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) addDefaultHeaders(req *http.Request) {
	req.Header.Set("Git-Protocol", "version=2")
	req.Header.Set("User-Agent", c.userAgent)
	if c.hasBasicAuth {
		req.SetBasicAuth(c.basicAuthUser, c.basicAuthPass)
	} else if c.tokenAuth != nil {
		req.Header.Set("Authorization", *c.tokenAuth)
	}
}

// SmartInfo performs the GET $repo/info/refs?service=<service> request
// that begins every smart-HTTP exchange: server capability and
// reference advertisement.
func (c *Client) SmartInfo(ctx context.Context, service string) ([]byte, error) {
	u := *c.base
	u.Path += "/info/refs"
	query := make(url.Values)
	query.Set("service", service)
	u.RawQuery = query.Encode()

	logger := log.FromContext(ctx)
	logger.Debug("smart info request", "url", u.String(), "service", service)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.addDefaultHeaders(req)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, NewServerUnavailableError(http.MethodGet, 0, err)
	}
	defer res.Body.Close()

	if err := checkStatus(res); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("client: reading smart info response: %w", err)
	}
	logger.Debug("smart info response", "status", res.StatusCode, "size", len(body))
	return body, nil
}

// UploadPack performs the POST $repo/git-upload-pack request with the
// given pkt-line encoded fetch request body, returning the raw response
// body for sideband demultiplexing by the caller.
func (c *Client) UploadPack(ctx context.Context, body []byte) (io.ReadCloser, error) {
	u := *c.base
	u.Path += "/git-upload-pack"

	logger := log.FromContext(ctx)
	logger.Debug("upload-pack request", "url", u.String(), "bodySize", len(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.addDefaultHeaders(req)
	req.Header.Set("Content-Type", "application/x-git-upload-pack-request")
	req.Header.Set("Accept", "application/x-git-upload-pack-result")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, NewServerUnavailableError(http.MethodPost, 0, err)
	}

	if err := checkStatus(res); err != nil {
		res.Body.Close()
		return nil, err
	}
	return res.Body, nil
}

func checkStatus(res *http.Response) error {
	if err := CheckServerUnavailable(res); err != nil {
		return err
	}
	if err := CheckHTTPClientError(res); err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("client: unexpected status %s", res.Status)
	}
	return nil
}
