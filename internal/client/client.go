// Package client provides an HTTP client for the portfolio comment API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/portfolio/internal/api"
	"github.com/evcraddock/portfolio/internal/comment"
)

var (
	// ErrUsernameTaken is returned when another user already has the username.
	ErrUsernameTaken = errors.New("username is already taken")
	// ErrNotLoggedIn is returned when the server does not recognize the caller.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Client is an HTTP client for the comment API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchComments returns one page of comments.
func (c *Client) FetchComments(ctx context.Context, q api.CommentsQuery) (*api.CommentsPage, error) {
	var page api.CommentsPage
	if err := c.get(ctx, "/get-comments?"+q.Values().Encode(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SubmitComment posts a new comment. Email and username may be left empty
// when the API key identifies the caller.
func (c *Client) SubmitComment(ctx context.Context, n comment.NewComment) (*comment.Comment, error) {
	form := url.Values{"text": {n.Text}}
	if n.Email != "" {
		form.Set("email", n.Email)
	}
	if n.Username != "" {
		form.Set("username", n.Username)
	}

	var wire api.WireComment
	status, err := c.postForm(ctx, "/data", form, &wire)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("posting comment: unexpected status %d", status)
	}
	return wire.Comment(), nil
}

// DeleteComment removes a comment by ID.
func (c *Client) DeleteComment(ctx context.Context, id int64) error {
	form := url.Values{"id": {strconv.FormatInt(id, 10)}}
	if _, err := c.postForm(ctx, "/delete-comment", form, nil); err != nil {
		return err
	}
	return nil
}

// LoginStatus reports who the server thinks the caller is.
func (c *Client) LoginStatus(ctx context.Context) (*api.LoginStatus, error) {
	var status api.LoginStatus
	if err := c.get(ctx, "/login-status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// ChooseUsername sets the caller's username. 201 means success and 409 means
// the name is taken; any other answer except a validation error is treated
// as not being logged in.
func (c *Client) ChooseUsername(ctx context.Context, name string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/username", strings.NewReader(url.Values{"username": {name}}.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, body, err := c.send(req)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return ErrUsernameTaken
	case http.StatusBadRequest:
		return errorFrom(resp.StatusCode, body)
	default:
		return ErrNotLoggedIn
	}
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, result)
	return err
}

// postForm performs a form-encoded POST and decodes the response.
func (c *Client) postForm(ctx context.Context, path string, form url.Values, result interface{}) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes an HTTP request and handles errors.
func (c *Client) do(req *http.Request, result interface{}) (int, error) {
	resp, body, err := c.send(req)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, errorFrom(resp.StatusCode, body)
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

// send executes a request with the auth header and reads the whole body.
func (c *Client) send(req *http.Request) (*http.Response, []byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "error", cerr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp, body, nil
}

// errorFrom turns a failed response into an error. 401 wraps ErrNotLoggedIn.
func errorFrom(status int, body []byte) error {
	msg := "server error: " + http.StatusText(status)
	var errResp api.ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		msg = errResp.Error
	}
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrNotLoggedIn, msg)
	}
	return errors.New(msg)
}
