package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
	taskboardsdk "taskboard/sdk/go"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	Repo   repo.Repo
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

// API returns the base URL of the JSON API.
func (s *testServer) API() string { return s.URL + "/api" }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "taskboard.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.New(conn, dialect)
	e := engine.New(r, auth.Tokens{Secret: "test-secret"}, nil)
	ctx := context.Background()
	for _, u := range []engine.UserCreateOptions{
		{Name: "Alice", Email: "alice@example.com", Password: "alice-pass", Role: domain.RoleMember},
		{Name: "Bob", Email: "bob@example.com", Password: "bob-pass", Role: domain.RoleMember},
		{Name: "Root", Email: "root@example.com", Password: "root-pass", Role: domain.RoleAdmin},
	} {
		if _, err := e.CreateUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
	handler, err := New(Config{Engine: e, BasePath: "/api"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		Repo:   r,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

// login returns an SDK client authenticated as the given user.
func (s *testServer) login(t *testing.T, email, password string) *taskboardsdk.Client {
	t.Helper()
	c := taskboardsdk.New(s.API())
	if _, err := c.Login(context.Background(), email, password); err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return c
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func bearer(c *taskboardsdk.Client) map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.BearerToken}
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *taskboardsdk.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error %d, got %v", status, err)
	}
	if apiErr.StatusCode != status {
		t.Fatalf("expected status %d, got %d: %s", status, apiErr.StatusCode, apiErr.Body)
	}
}

func strPtr(s string) *string { return &s }

func TestHealthIsPublicAndTasksAreNot(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/health", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("health: %d %s", res.StatusCode, data)
	}
	if res.Header.Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Error.Code != "unauthorized" {
		t.Fatalf("unexpected envelope %s", data)
	}
	for _, h := range []map[string]string{
		{"Authorization": "Bearer not-a-token"},
		{"Authorization": "Basic abc"},
		{"X-Api-Key": "tb_nope"},
	} {
		res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/tasks", nil, h)
		if res.StatusCode != http.StatusUnauthorized {
			t.Fatalf("headers %v: expected 401, got %d", h, res.StatusCode)
		}
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	alice := srv.login(t, "alice@example.com", "alice-pass")
	bob := srv.login(t, "bob@example.com", "bob-pass")

	bobProfile, err := bob.Profile(ctx)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	created, err := alice.CreateTask(ctx, taskboardsdk.TaskInput{
		Title:        strPtr("Write docs"),
		Description:  strPtr("API reference"),
		DueDate:      strPtr("2024-05-01"),
		AssignedToID: &bobProfile.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Status != "PENDING" || created.AssignedTo == nil || created.AssignedTo.Name != "Bob" {
		t.Fatalf("unexpected created task: %+v", created)
	}
	if created.CreatedBy == nil || created.CreatedBy.Email != "alice@example.com" {
		t.Fatalf("creator not projected: %+v", created.CreatedBy)
	}

	if _, err := bob.CreateComment(ctx, created.ID, "on it"); err != nil {
		t.Fatalf("comment: %v", err)
	}
	detail, err := bob.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(detail.Comments) != 1 || detail.Comments[0].Author == nil || detail.Comments[0].Author.Name != "Bob" {
		t.Fatalf("detail comments: %+v", detail.Comments)
	}

	updated, err := bob.UpdateTask(ctx, created.ID, taskboardsdk.TaskInput{Status: strPtr("COMPLETED")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != "COMPLETED" || updated.Title != "Write docs" {
		t.Fatalf("partial fields: %+v", updated)
	}
	if updated.AssignedTo != nil || updated.DueDate != nil {
		t.Fatalf("assignee and due date should be cleared: %+v", updated)
	}

	tasks, err := bob.ListTasks(ctx)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("list: %v %v", tasks, err)
	}

	if err := bob.DeleteTask(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = alice.GetTask(ctx, created.ID)
	expectStatus(t, err, http.StatusNotFound)
	comments, err := alice.ListComments(ctx, created.ID)
	if err != nil || len(comments) != 0 {
		t.Fatalf("comments of deleted task: %v %v", comments, err)
	}
}

func TestWebFormPayloads(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	alice := srv.login(t, "alice@example.com", "alice-pass")
	url := srv.API() + "/tasks"

	res, data := doJSON(t, srv.Client(), http.MethodPost, url, map[string]any{
		"title": "from form", "description": "", "dueDate": "", "assignedToId": "",
	}, bearer(alice))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("empty form values: %d %s", res.StatusCode, data)
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatal(err)
	}
	if task.AssignedTo != nil || task.DueDate != nil {
		t.Fatalf("empty strings should mean unset: %s", data)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, url+"/"+itoa(task.ID), map[string]any{
		"title": "from form", "assignedToId": "2", "dueDate": "2024-06-30",
	}, bearer(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("string id: %d %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatal(err)
	}
	if task.AssignedToID == nil || *task.AssignedToID != 2 || task.DueDate == nil || *task.DueDate != "2024-06-30T00:00:00Z" {
		t.Fatalf("form update not applied: %s", data)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodPut, url+"/"+itoa(task.ID), map[string]any{"assignedToId": "bob"}, bearer(alice))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric assignee, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPut, url+"/"+itoa(task.ID), map[string]any{"assignedToId": 999}, bearer(alice))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown assignee, got %d", res.StatusCode)
	}

	res, data = doJSON(t, srv.Client(), http.MethodPut, url+"/"+itoa(task.ID), map[string]any{"description": nil}, bearer(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("null description: %d %s", res.StatusCode, data)
	}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatal(err)
	}
	if task.Description != nil {
		t.Fatalf("explicit null should clear description: %s", data)
	}
}

func TestValidationAndNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	alice := srv.login(t, "alice@example.com", "alice-pass")

	_, err := alice.CreateTask(ctx, taskboardsdk.TaskInput{Title: strPtr("  ")})
	expectStatus(t, err, http.StatusBadRequest)
	tasks, err := alice.ListTasks(ctx)
	if err != nil || len(tasks) != 0 {
		t.Fatalf("invalid create persisted: %v %v", tasks, err)
	}

	_, err = alice.GetTask(ctx, 404)
	expectStatus(t, err, http.StatusNotFound)
	_, err = alice.UpdateTask(ctx, 404, taskboardsdk.TaskInput{Title: strPtr("x")})
	expectStatus(t, err, http.StatusNotFound)
	expectStatus(t, alice.DeleteTask(ctx, 404), http.StatusNotFound)
	_, err = alice.CreateComment(ctx, 404, "hello")
	expectStatus(t, err, http.StatusNotFound)
	expectStatus(t, alice.DeleteComment(ctx, 404), http.StatusNotFound)

	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/tasks/abc", nil, bearer(alice))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed id: expected 400, got %d", res.StatusCode)
	}
	res, _ = doJSON(t, srv.Client(), http.MethodPost, srv.API()+"/tasks", nil, bearer(alice))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing body: expected 400, got %d", res.StatusCode)
	}
}

func TestCommentDeletePermissions(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	alice := srv.login(t, "alice@example.com", "alice-pass")
	bob := srv.login(t, "bob@example.com", "bob-pass")
	root := srv.login(t, "root@example.com", "root-pass")

	task, err := root.CreateTask(ctx, taskboardsdk.TaskInput{Title: strPtr("discuss")})
	if err != nil {
		t.Fatal(err)
	}
	c, err := alice.CreateComment(ctx, task.ID, "hi")
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	_, err = alice.CreateComment(ctx, task.ID, "")
	expectStatus(t, err, http.StatusBadRequest)

	expectStatus(t, bob.DeleteComment(ctx, c.ID), http.StatusForbidden)
	if err := alice.DeleteComment(ctx, c.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	c2, err := alice.CreateComment(ctx, task.ID, "again")
	if err != nil {
		t.Fatal(err)
	}
	if err := root.DeleteComment(ctx, c2.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestUserListings(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	alice := srv.login(t, "alice@example.com", "alice-pass")
	root := srv.login(t, "root@example.com", "root-pass")

	_, err := alice.ListUsers(ctx)
	expectStatus(t, err, http.StatusForbidden)
	users, err := root.ListUsers(ctx)
	if err != nil || len(users) != 3 || users[2].Role != "ADMIN" || users[0].CreatedAt == "" {
		t.Fatalf("admin listing: %+v %v", users, err)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/users/for-assignment", nil, bearer(alice))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("for-assignment: %d %s", res.StatusCode, data)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, u := range raw {
		if len(u) != 3 || u["id"] == nil || u["name"] == nil || u["email"] == nil {
			t.Fatalf("assignment entry should carry only id, name and email: %v", u)
		}
	}
}

func TestTokenForDeletedUser(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	sess, err := taskboardsdk.New(srv.API()).Register(ctx, "Temp", "temp@example.com", "temp-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := srv.Repo.DB.Exec(`DELETE FROM users WHERE id=?`, sess.User.ID); err != nil {
		t.Fatal(err)
	}
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/auth/profile", nil, map[string]string{"Authorization": "Bearer " + sess.Token})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted user, got %d", res.StatusCode)
	}
}

func TestLoginAndRegister(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	c := taskboardsdk.New(srv.API())
	_, err := c.Login(ctx, "alice@example.com", "wrong")
	expectStatus(t, err, http.StatusUnauthorized)
	_, err = c.Register(ctx, "Alice Two", "alice@example.com", "whatever1")
	expectStatus(t, err, http.StatusBadRequest)

	sess, err := c.Register(ctx, "Dora", "dora@example.com", "dora-pass")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if sess.Token == "" || sess.User.Role != "MEMBER" {
		t.Fatalf("unexpected session %+v", sess)
	}
	profile, err := c.Profile(ctx)
	if err != nil || profile.Email != "dora@example.com" {
		t.Fatalf("profile: %+v %v", profile, err)
	}
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	ctx := context.Background()
	_, secret, err := srv.Engine.CreateAPIKey(ctx, "bob@example.com", "ci")
	if err != nil {
		t.Fatal(err)
	}
	c := taskboardsdk.New(srv.API())
	c.APIKey = secret
	profile, err := c.Profile(ctx)
	if err != nil || profile.Name != "Bob" {
		t.Fatalf("api key profile: %+v %v", profile, err)
	}
}

func TestOpenAPIAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/tasks/{id}") {
		t.Fatalf("openapi: %d", res.StatusCode)
	}
	doJSON(t, srv.Client(), http.MethodGet, srv.API()+"/health", nil, nil)
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "taskboard_http_requests_total") {
		t.Fatalf("metrics: %d", res.StatusCode)
	}
	if !strings.Contains(string(data), `route="/api/health"`) {
		t.Fatalf("route label should use the chi pattern")
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
