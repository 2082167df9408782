package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// ErrAuth is returned when the server refuses the login form.
var ErrAuth = errors.New("authentication failed")

// Endpoints are the server URLs derived from the base address and app path.
type Endpoints struct {
	Auth   *url.URL
	Socket *url.URL
}

// ResolveEndpoints joins server and appPath into the auth and socket.io URLs.
func ResolveEndpoints(server, appPath string) (Endpoints, error) {
	base, err := url.Parse(server)
	if err != nil {
		return Endpoints{}, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return Endpoints{}, fmt.Errorf("invalid server URL %q: scheme must be http or https", server)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	app := strings.Trim(appPath, "/")
	if app != "" {
		app += "/"
	}

	auth := *base
	auth.Path = base.Path + app + "server/auth/"

	socket := *base
	socket.Path = base.Path + app + "server/socket.io/"
	socket.RawQuery = "EIO=4&transport=websocket"
	switch socket.Scheme {
	case "http":
		socket.Scheme = "ws"
	case "https":
		socket.Scheme = "wss"
	}
	return Endpoints{Auth: &auth, Socket: &socket}, nil
}

// Authenticate posts the guest login form and returns a client whose cookie
// jar holds the session cookie. Redirects are not followed; a 302 counts as
// success.
func Authenticate(ctx context.Context, authURL *url.URL, name string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	form := url.Values{"name": {name}, "passwd": {"*"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %s: %s", ErrAuth, resp.Status, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return client, nil
}
