package galaxy

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("galaxy-admin.galaxy")

const defaultTimeout = 60 * time.Second

// transport issues JSON requests against one server. It is shared by the
// Galaxy and toolshed clients.
type transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// newHTTPClient builds an HTTP client. noVerify only disables certificate
// checks; the TLS version floor is unchanged.
func newHTTPClient(timeout time.Duration, noVerify bool) *http.Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: noVerify, //nolint:gosec // operator opt-in via --no-verify
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// NormaliseURL adds https:// to a server address given without a protocol
// and strips trailing slashes.
func NormaliseURL(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	return strings.TrimRight(u, "/")
}

func (t *transport) endpoint(path string, query url.Values) string {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doRequest makes an authenticated HTTP request.
func (t *transport) doRequest(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	return t.do(ctx, req, contentType)
}

func (t *transport) do(ctx context.Context, req *http.Request, contentType string) (*http.Response, error) {
	if t.apiKey != "" {
		req.Header.Set("x-api-key", t.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{URL: t.baseURL, Err: err}
	}
	logger.Debugf("%s %s -> %d (%s)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))
	return resp, nil
}

// doJSON sends reqBody (if any) as JSON and decodes a 2xx response into
// respBody (if any).
func (t *transport) doJSON(ctx context.Context, method, path string, query url.Values, reqBody, respBody interface{}) error {
	var body io.Reader
	contentType := ""
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := t.doRequest(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return t.decode(resp, path, respBody)
}

func (t *transport) decode(resp *http.Response, path string, respBody interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return t.parseError(resp)
	}
	if respBody == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

// parseError parses an error response.
func (t *transport) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		ErrMsg string `json:"err_msg"`
		Error  string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.ErrMsg != "":
			msg = errResp.ErrMsg
		case errResp.Error != "":
			msg = errResp.Error
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{URL: t.baseURL, Message: msg}
	}
	return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Message: msg}
}
