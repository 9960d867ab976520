package adapter

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xenosun/codeBeamer-offline-client/internal/domain"
	"github.com/xenosun/codeBeamer-offline-client/internal/logger"
	"github.com/xenosun/codeBeamer-offline-client/internal/session"
)

// RestClient implements port.RestAPI against the server's REST surface.
// Every call carries the session's bearer token; non-2xx responses are
// mapped to *domain.ServerError instead of being returned raw.
type RestClient struct {
	session    *session.Session
	httpClient *http.Client
}

// NewRestClient creates a new REST client bound to the given session.
func NewRestClient(s *session.Session) *RestClient {
	return &RestClient{
		session: s,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Get performs an authenticated GET against a server-relative path.
func (c *RestClient) Get(path string) (json.RawMessage, error) {
	req, err := http.NewRequest(http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "application/json")
	return c.do(req)
}

// Post performs an authenticated JSON POST against a server-relative path.
func (c *RestClient) Post(path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(http.MethodPost, c.url(path), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "application/json")
	return c.do(req)
}

// GetBlob fetches binary content with the given Accept header.
func (c *RestClient) GetBlob(path, accept string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ServerError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, mapServerError(resp.StatusCode, resp.Status, body)
	}
	return io.ReadAll(resp.Body)
}

// Authenticate performs the basic-auth token exchange and returns the
// server user together with a fresh bearer token.
func (c *RestClient) Authenticate(username, password string) (*domain.User, string, error) {
	req, err := http.NewRequest(http.MethodGet, c.url("rest/jwt/authenticate"), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, "application/json")
	basic := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	req.Header.Set("Authorization", "Basic "+basic)

	raw, err := c.do(req)
	if err != nil {
		return nil, "", err
	}

	var auth struct {
		User  domain.User `json:"user"`
		Token string      `json:"token"`
	}
	if err := json.Unmarshal(raw, &auth); err != nil {
		return nil, "", fmt.Errorf("failed to decode authenticate response: %w", err)
	}
	if auth.Token == "" {
		return nil, "", &domain.ServerError{Message: "authenticate response carries no token"}
	}
	return &auth.User, auth.Token, nil
}

func (c *RestClient) url(path string) string {
	return c.session.Base() + "/" + strings.TrimPrefix(path, "/")
}

func (c *RestClient) setHeaders(req *http.Request, accept string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
}

func (c *RestClient) do(req *http.Request) (json.RawMessage, error) {
	logger.Debug("rest: %s %s", req.Method, req.URL.Path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ServerError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ServerError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serverErr := mapServerError(resp.StatusCode, resp.Status, body)
		logger.Debug("rest: %s %s failed: %v", req.Method, req.URL.Path, serverErr)
		return nil, serverErr
	}
	return body, nil
}

// mapServerError extracts a best-effort human readable message from a
// failed response: the status code for auth failures, otherwise the
// message field of the error body trimmed down to its interesting part.
func mapServerError(statusCode int, status string, body []byte) *domain.ServerError {
	var message string
	if statusCode == http.StatusUnauthorized {
		message = "Unauthorized!"
	}
	if message == "" && len(body) > 0 {
		var parsed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
			message = parsed.Message
			if idx := strings.Index(message, ":"); idx >= 0 {
				message = message[idx+1:]
			}
			message = strings.SplitN(message, ";", 2)[0]
			message = strings.TrimSpace(message)
		}
	}
	if message == "" {
		if status != "" {
			message = status
		} else {
			message = "Server error"
		}
	}
	return &domain.ServerError{StatusCode: statusCode, Message: message}
}
