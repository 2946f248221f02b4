package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/taskhub/webhook-gateway/errs"
	"github.com/taskhub/webhook-gateway/task"
)

/* Client talks to the task domain service over HTTP. It implements all
 * three collaborator interfaces so the composition root wires a single
 * client everywhere. GET-style calls retry transient failures with
 * exponential backoff; mutations are sent exactly once and the caller
 * decides what a failure means.
 */
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client against the task service base URL
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// serviceError mirrors the task service's error body
type serviceError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (c *Client) GetTask(ctx context.Context, workspaceID, taskID string) (task.Task, error) {
	var t task.Task
	err := c.get(ctx, fmt.Sprintf("/workspaces/%s/tasks/%s", workspaceID, taskID), &t)
	return t, err
}

func (c *Client) CreateTask(ctx context.Context, workspaceID string, fields json.RawMessage) (task.Task, error) {
	var t task.Task
	err := c.post(ctx, fmt.Sprintf("/workspaces/%s/tasks", workspaceID), fields, &t)
	return t, err
}

func (c *Client) UpdateTask(ctx context.Context, workspaceID, taskID string, fields json.RawMessage) (task.Task, error) {
	var t task.Task
	err := c.post(ctx, fmt.Sprintf("/workspaces/%s/tasks/%s", workspaceID, taskID), fields, &t)
	return t, err
}

func (c *Client) PauseTask(ctx context.Context, workspaceID, taskID string) (task.Task, error) {
	var t task.Task
	err := c.post(ctx, fmt.Sprintf("/workspaces/%s/tasks/%s/pause", workspaceID, taskID), nil, &t)
	return t, err
}

func (c *Client) ResumeTask(ctx context.Context, workspaceID, taskID string) (task.Task, error) {
	var t task.Task
	err := c.post(ctx, fmt.Sprintf("/workspaces/%s/tasks/%s/resume", workspaceID, taskID), nil, &t)
	return t, err
}

func (c *Client) List(ctx context.Context, workspaceID string, filter json.RawMessage) ([]task.Task, error) {
	var tasks []task.Task
	err := c.post(ctx, fmt.Sprintf("/workspaces/%s/tasks/list", workspaceID), filter, &tasks)
	return tasks, err
}

func (c *Client) Search(ctx context.Context, workspaceID, query string) ([]task.Task, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, fmt.Errorf("marshaling search query: %w", err)
	}
	var tasks []task.Task
	err = c.post(ctx, fmt.Sprintf("/workspaces/%s/tasks/search", workspaceID), body, &tasks)
	return tasks, err
}

func (c *Client) Stats(ctx context.Context, workspaceID string) (map[string]any, error) {
	var stats map[string]any
	err := c.get(ctx, fmt.Sprintf("/workspaces/%s/tasks/stats", workspaceID), &stats)
	return stats, err
}

func (c *Client) CalculateNextDueDate(ctx context.Context, pattern string, from time.Time) (time.Time, error) {
	body, err := json.Marshal(map[string]string{
		"pattern": pattern,
		"from":    from.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("marshaling recurrence request: %w", err)
	}
	var out struct {
		NextDueDate time.Time `json:"nextDueDate"`
	}
	if err := c.post(ctx, "/recurrence/next", body, &out); err != nil {
		return time.Time{}, err
	}
	return out.NextDueDate, nil
}

func (c *Client) ValidatePattern(ctx context.Context, pattern string) error {
	body, err := json.Marshal(map[string]string{"pattern": pattern})
	if err != nil {
		return fmt.Errorf("marshaling recurrence request: %w", err)
	}
	return c.post(ctx, "/recurrence/validate", body, nil)
}

// get performs a read with exponential backoff on transient failures
func (c *Client) get(ctx context.Context, path string, result any) error {
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		if err := c.do(req, result); err != nil {
			if errs.AsError(err) != nil {
				// a typed refusal will not change on retry
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 10 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return err
	}
	return nil
}

// post performs a mutation, sent exactly once
func (c *Client) post(ctx context.Context, path string, body json.RawMessage, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling task service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading task service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return typedError(resp.StatusCode, respBody)
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding task service response: %w", err)
	}
	return nil
}

// typedError converts a task service failure into a typed error the
// handlers can pass through unchanged
func typedError(status int, body []byte) error {
	var svcErr serviceError
	if err := json.Unmarshal(body, &svcErr); err == nil && svcErr.Code != "" {
		e := errs.New(errs.Code(svcErr.Code), svcErr.Message)
		if svcErr.Details != nil {
			e = e.WithDetails(svcErr.Details)
		}
		return e
	}

	switch status {
	case http.StatusNotFound:
		return errs.New(errs.CodeNotFound, "task not found")
	case http.StatusForbidden:
		return errs.New(errs.CodeForbidden, "workspace access denied")
	case http.StatusConflict:
		return errs.New(errs.CodeInvalidStateTransition, "task is not in a state that allows this operation")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errs.New(errs.CodeValidation, "task service rejected the request")
	default:
		return fmt.Errorf("task service returned status %d", status)
	}
}
