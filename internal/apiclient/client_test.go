package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chetan-code/taskboard/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func TestLoginReturnsChallengeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/login" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.com" || body["password"] != "x" {
			t.Errorf("body = %v", body)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a credential")
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "123456"})
	})

	code, err := c.Login(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if code != "123456" {
		t.Fatalf("code = %q", code)
	}
}

func TestRemoteErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Usuário não encontrado", http.StatusNotFound)
	})

	_, err := c.Login(context.Background(), "a@b.com", "x")
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if remote.Status != http.StatusNotFound || remote.Message != "Usuário não encontrado" {
		t.Fatalf("remote = %+v", remote)
	}
	if remote.IsUnauthorized() {
		t.Fatal("404 is not unauthorized")
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.Tasks(context.Background(), "tok")
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("err = %v, want NetworkError", err)
	}
}

func TestCredentialTravelsAsBearerHeader(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("%s %s: Authorization = %q", r.Method, r.URL.Path, got)
		}
		if r.Body != nil {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				if _, ok := body["token"]; ok {
					t.Errorf("%s %s: token leaked into body", r.Method, r.URL.Path)
				}
			}
		}
		switch r.URL.Path {
		case "/api/tasks":
			json.NewEncoder(w).Encode([]models.Task{{ID: 1, Name: "a"}})
		case "/api/task/7":
			json.NewEncoder(w).Encode(map[string]string{"row": `(Buy milk,"two liters")`})
		case "/api/completionTask":
			json.NewEncoder(w).Encode(models.Task{ID: 7, IsCompleted: true})
		default:
			json.NewEncoder(w).Encode("ok")
		}
	})

	ctx := context.Background()
	if _, err := c.Tasks(ctx, "tok"); err != nil {
		t.Fatalf("Tasks: %v", err)
	}
	if msg, err := c.CreateTask(ctx, "tok", "t", "d"); err != nil || msg != "ok" {
		t.Fatalf("CreateTask = %q, %v", msg, err)
	}
	row, err := c.Task(ctx, "tok", 7)
	if err != nil {
		t.Fatalf("Task: %v", err)
	}
	if row.Title != "Buy milk" || row.Description != "two liters" {
		t.Fatalf("row = %+v", row)
	}
	if _, err := c.UpdateTask(ctx, "tok", 7, "t", "d"); err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if _, err := c.DeleteTask(ctx, "tok", 7); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	task, err := c.SetCompletion(ctx, "tok", 7, true)
	if err != nil {
		t.Fatalf("SetCompletion: %v", err)
	}
	if !task.IsCompleted {
		t.Fatal("expected completed task")
	}
	if len(seen) != 6 {
		t.Fatalf("requests = %v", seen)
	}
}

func TestTextBodyAcceptsPlainAndJSON(t *testing.T) {
	if got := textBody([]byte(`"Tarefa criada"`)); got != "Tarefa criada" {
		t.Fatalf("json string = %q", got)
	}
	if got := textBody([]byte("Tarefa criada\n")); got != "Tarefa criada" {
		t.Fatalf("plain = %q", got)
	}
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		row   string
		title string
		desc  string
		fail  bool
	}{
		{row: "(Buy milk,two liters)", title: "Buy milk", desc: "two liters"},
		{row: `("Write report","due friday")`, title: "Write report", desc: "due friday"},
		{row: "(only title)", title: "only title"},
		{row: "()", fail: true},
		{row: "", fail: true},
	}
	for _, tt := range tests {
		got, err := ParseRow(tt.row)
		if tt.fail {
			if err == nil {
				t.Errorf("ParseRow(%q) expected error", tt.row)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRow(%q): %v", tt.row, err)
			continue
		}
		if got.Title != tt.title || got.Description != tt.desc {
			t.Errorf("ParseRow(%q) = %+v", tt.row, got)
		}
	}
}
