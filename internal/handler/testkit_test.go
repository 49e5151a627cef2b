package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chetan-code/taskboard/internal/apiclient"
	"github.com/chetan-code/taskboard/internal/models"
	"github.com/chetan-code/taskboard/internal/repository"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, email string, expires time.Time) string {
	t.Helper()
	claims := &models.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

// fakeAPI is an in-memory stand-in for the external task API.
type fakeAPI struct {
	mu sync.Mutex

	code        string
	loginStatus int
	loginMsg    string
	logins      int

	tasks        []models.Task
	tasksStatus  int
	deleteStatus int
	row          string

	completionBodies []map[string]any
	deleted          []int
	registered       []models.User
	authHeaders      []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if auth := r.Header.Get("Authorization"); auth != "" {
		f.authHeaders = append(f.authHeaders, auth)
	}
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case r.URL.Path == "/api/login":
		f.logins++
		if f.loginStatus != 0 {
			http.Error(w, f.loginMsg, f.loginStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": f.code})
	case r.URL.Path == "/api/register":
		f.registered = append(f.registered, models.User{Name: body["name"].(string), Email: body["email"].(string)})
		json.NewEncoder(w).Encode("User registered")
	case r.URL.Path == "/api/tasks":
		if f.tasksStatus != 0 {
			http.Error(w, "nope", f.tasksStatus)
			return
		}
		if f.tasks == nil {
			w.Write([]byte("[]"))
			return
		}
		json.NewEncoder(w).Encode(f.tasks)
	case r.URL.Path == "/api/createtask":
		json.NewEncoder(w).Encode("Task created")
	case strings.HasPrefix(r.URL.Path, "/api/task/"):
		json.NewEncoder(w).Encode(map[string]string{"row": f.row})
	case r.URL.Path == "/api/updateTask":
		json.NewEncoder(w).Encode("Task updated")
	case r.URL.Path == "/api/deleteTask":
		if f.deleteStatus != 0 {
			http.Error(w, "Could not delete task", f.deleteStatus)
			return
		}
		id := int(body["id"].(float64))
		f.deleted = append(f.deleted, id)
		json.NewEncoder(w).Encode("Task deleted")
	case r.URL.Path == "/api/completionTask":
		f.completionBodies = append(f.completionBodies, body)
		id := int(body["id"].(float64))
		done := body["iscompleted"].(bool)
		for i := range f.tasks {
			if f.tasks[i].ID == id {
				f.tasks[i].IsCompleted = done
				json.NewEncoder(w).Encode(f.tasks[i])
				return
			}
		}
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.NotFound(w, r)
	}
}

type harness struct {
	api        *fakeAPI
	handler    *TaskHandler
	challenges *repository.MemoryChallengeStore
	server     *httptest.Server
	client     *http.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, false)
}

// newHarnessWith sets the Secure flag on the credential cookie only. The
// flash and login_flow cookies stay plain so the flow works over http.
func newHarnessWith(t *testing.T, secureCredential bool) *harness {
	t.Helper()

	api := &fakeAPI{}
	apiSrv := httptest.NewServer(api)
	t.Cleanup(apiSrv.Close)

	challenges := repository.NewMemoryChallengeStore(time.Hour)
	h, err := NewTaskHandler(Options{
		API:           apiclient.New(apiSrv.URL, time.Second),
		Challenges:    challenges,
		Store:         NewSessionStore([]byte(strings.Repeat("s", 32)), false),
		SecureCookies: secureCredential,
	})
	if err != nil {
		t.Fatalf("NewTaskHandler: %v", err)
	}
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	srv := httptest.NewServer(h.Routes(v))
	t.Cleanup(srv.Close)

	return &harness{api: api, handler: h, challenges: challenges, server: srv, client: newClient()}
}

// newClient keeps cookies and does not follow redirects.
func newClient() *http.Client {
	jar, _ := cookiejar.New(nil)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// login puts a valid credential in the cookie jar and returns it.
func (hs *harness) login(t *testing.T) string {
	t.Helper()
	token := signToken(t, testSecret, "a@b.com", time.Now().Add(time.Hour))
	u, _ := url.Parse(hs.server.URL)
	hs.client.Jar.SetCookies(u, []*http.Cookie{{Name: credentialCookie, Value: token, Path: "/"}})
	return token
}

func (hs *harness) get(t *testing.T, path string, headers ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, hs.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return hs.do(t, req)
}

func (hs *harness) post(t *testing.T, path string, form url.Values, headers ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, hs.server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return hs.do(t, req)
}

func (hs *harness) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := hs.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func expectRedirect(t *testing.T, resp *http.Response, to string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != to {
		t.Fatalf("Location = %q, want %q", got, to)
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func apiclientFor(baseURL string) *apiclient.Client {
	return apiclient.New(baseURL, time.Second)
}
