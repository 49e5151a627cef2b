package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chetan-code/taskboard/internal/models"
)

// Client talks to the external task API. The session credential is always
// sent as a bearer header.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// TaskRow is the title/description pair the API returns for a single task.
type TaskRow struct {
	Title       string
	Description string
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/login", "", body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &NetworkError{Op: "POST /api/login", Err: errors.New("response carried no token")}
	}
	return out.Token, nil
}

func (c *Client) Register(ctx context.Context, u models.User) (string, error) {
	return c.doText(ctx, http.MethodPost, "/api/register", "", u)
}

func (c *Client) Tasks(ctx context.Context, token string) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.doJSON(ctx, http.MethodGet, "/api/tasks", token, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, token, title, description string) (string, error) {
	body := map[string]string{"title": title, "description": description}
	return c.doText(ctx, http.MethodPost, "/api/createtask", token, body)
}

func (c *Client) Task(ctx context.Context, token string, id int) (TaskRow, error) {
	var out struct {
		Row string `json:"row"`
	}
	path := "/api/task/" + strconv.Itoa(id)
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return TaskRow{}, err
	}
	row, err := ParseRow(out.Row)
	if err != nil {
		return TaskRow{}, &NetworkError{Op: "GET " + path, Err: err}
	}
	return row, nil
}

func (c *Client) UpdateTask(ctx context.Context, token string, id int, title, description string) (string, error) {
	body := struct {
		ID          int    `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}{id, title, description}
	return c.doText(ctx, http.MethodPut, "/api/updateTask", token, body)
}

func (c *Client) DeleteTask(ctx context.Context, token string, id int) (string, error) {
	body := struct {
		ID int `json:"id"`
	}{id}
	return c.doText(ctx, http.MethodDelete, "/api/deleteTask", token, body)
}

func (c *Client) SetCompletion(ctx context.Context, token string, id int, done bool) (models.Task, error) {
	body := struct {
		ID          int  `json:"id"`
		IsCompleted bool `json:"iscompleted"`
	}{id, done}
	var task models.Task
	if err := c.doJSON(ctx, http.MethodPut, "/api/completionTask", token, body, &task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

var rowField = regexp.MustCompile(`[^,"()]+`)

// ParseRow reads the serialized tuple "(title,description)" the API uses for
// a single task. Commas, quotes and parentheses act as separators.
func ParseRow(row string) (TaskRow, error) {
	fields := rowField.FindAllString(row, -1)
	if len(fields) == 0 {
		return TaskRow{}, fmt.Errorf("malformed task row %q", row)
	}
	out := TaskRow{Title: fields[0]}
	if len(fields) > 1 {
		out.Description = fields[1]
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) ([]byte, error) {
	op := method + " " + path

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("api_request_failed", "op", op, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error("api_response_read_failed", "op", op, "error", err)
		return nil, &NetworkError{Op: op, Err: err}
	}

	slog.Debug("api_request", "op", op, "status", resp.StatusCode, "duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := textBody(data)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &RemoteError{Status: resp.StatusCode, Message: msg}
	}
	return data, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	data, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &NetworkError{Op: method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) doText(ctx context.Context, method, path, token string, body any) (string, error) {
	data, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return "", err
	}
	return textBody(data), nil
}

// textBody accepts either a JSON string or plain text.
func textBody(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(data))
}
