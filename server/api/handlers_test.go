package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/taskforge-io/taskforge/activity"
	"github.com/taskforge-io/taskforge/auth"
	"github.com/taskforge-io/taskforge/server/api"
	"github.com/taskforge-io/taskforge/storage"
	"github.com/taskforge-io/taskforge/task"
)

type stubSession struct{ user *auth.User }

func (s *stubSession) Current() *auth.User {
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func newTestHandlers(t *testing.T) (*api.Handlers, *http.ServeMux) {
	t.Helper()
	st, err := storage.Open(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	session := &stubSession{user: &auth.User{ID: "1", Name: "John Developer", Role: auth.RoleDeveloper}}
	tasks := task.NewStore(st, session, activity.NewInMemoryFeed(), nil)

	h := &api.Handlers{Tasks: tasks, Version: "test"}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func request(mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func createTask(t *testing.T, mux *http.ServeMux, title string) task.Task {
	t.Helper()
	rr := request(mux, http.MethodPost, "/api/tasks", map[string]string{"title": title})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create %q: expected 201, got %d: %s", title, rr.Code, rr.Body.String())
	}
	var created task.Task
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	return created
}

func TestCommentLifecycle(t *testing.T) {
	_, mux := newTestHandlers(t)
	created := createTask(t, mux, "commented")

	rr := request(mux, http.MethodPost, "/api/tasks/"+created.ID+"/comments", map[string]string{"content": "first"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add comment: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var c task.Comment
	json.NewDecoder(rr.Body).Decode(&c) //nolint:errcheck
	if c.AuthorName != "John Developer" {
		t.Errorf("expected session author, got %q", c.AuthorName)
	}

	rr = request(mux, http.MethodPut, "/api/tasks/"+created.ID+"/comments/"+c.ID, map[string]string{"content": "edited"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("update comment: expected 204, got %d", rr.Code)
	}

	rr = request(mux, http.MethodDelete, "/api/tasks/"+created.ID+"/comments/"+c.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete comment: expected 204, got %d", rr.Code)
	}
	rr = request(mux, http.MethodDelete, "/api/tasks/"+created.ID+"/comments/"+c.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rr.Code)
	}
}

func TestTimeEntryLifecycle(t *testing.T) {
	_, mux := newTestHandlers(t)
	created := createTask(t, mux, "timed")

	rr := request(mux, http.MethodPost, "/api/tasks/"+created.ID+"/time-entries", map[string]any{"duration": 30})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add entry: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var e task.TimeEntry
	json.NewDecoder(rr.Body).Decode(&e) //nolint:errcheck

	rr = request(mux, http.MethodPatch, "/api/tasks/"+created.ID+"/time-entries/"+e.ID, map[string]any{"duration": 45})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("update entry: expected 204, got %d", rr.Code)
	}

	rr = request(mux, http.MethodGet, "/api/tasks/"+created.ID, nil)
	var got task.Task
	json.NewDecoder(rr.Body).Decode(&got) //nolint:errcheck
	if got.TotalTimeSpent != 45 {
		t.Errorf("expected total 45 after delta adjust, got %d", got.TotalTimeSpent)
	}

	rr = request(mux, http.MethodDelete, "/api/tasks/"+created.ID+"/time-entries/"+e.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete entry: expected 204, got %d", rr.Code)
	}
}

func TestAttachmentEndpoints(t *testing.T) {
	_, mux := newTestHandlers(t)
	created := createTask(t, mux, "attached")

	rr := request(mux, http.MethodPost, "/api/tasks/"+created.ID+"/attachments", map[string]any{"name": "log.txt", "size": 128})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add attachment: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var a task.Attachment
	json.NewDecoder(rr.Body).Decode(&a) //nolint:errcheck
	if a.UploadedBy != "John Developer" {
		t.Errorf("expected session uploader, got %q", a.UploadedBy)
	}

	rr = request(mux, http.MethodDelete, "/api/tasks/"+created.ID+"/attachments/"+a.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete attachment: expected 204, got %d", rr.Code)
	}
}

func TestSubtaskEndpoints(t *testing.T) {
	_, mux := newTestHandlers(t)
	parent := createTask(t, mux, "parent")

	rr := request(mux, http.MethodPost, "/api/tasks/"+parent.ID+"/subtasks", map[string]string{"title": "child"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add subtask: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var sub task.Task
	json.NewDecoder(rr.Body).Decode(&sub) //nolint:errcheck
	if sub.ParentTaskID != parent.ID {
		t.Errorf("expected parent link, got %q", sub.ParentTaskID)
	}

	// The subtask is a task of its own.
	rr = request(mux, http.MethodGet, "/api/tasks/"+sub.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get subtask: expected 200, got %d", rr.Code)
	}

	rr = request(mux, http.MethodDelete, "/api/tasks/"+parent.ID+"/subtasks/"+sub.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove subtask: expected 204, got %d", rr.Code)
	}
	rr = request(mux, http.MethodGet, "/api/tasks/"+sub.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected subtask gone from collection, got %d", rr.Code)
	}
}

func TestDependencyAndRelatedEndpoints(t *testing.T) {
	_, mux := newTestHandlers(t)
	a := createTask(t, mux, "a")
	b := createTask(t, mux, "b")

	rr := request(mux, http.MethodPost, "/api/tasks/"+a.ID+"/dependencies/"+b.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("add dependency: expected 204, got %d", rr.Code)
	}
	// Duplicate add is accepted and ignored.
	rr = request(mux, http.MethodPost, "/api/tasks/"+a.ID+"/dependencies/"+b.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("duplicate add: expected 204, got %d", rr.Code)
	}

	rr = request(mux, http.MethodGet, "/api/tasks/"+a.ID, nil)
	var got task.Task
	json.NewDecoder(rr.Body).Decode(&got) //nolint:errcheck
	if len(got.Dependencies) != 1 || got.Dependencies[0] != b.ID {
		t.Fatalf("expected single dependency on %s, got %v", b.ID, got.Dependencies)
	}

	rr = request(mux, http.MethodPost, "/api/tasks/"+a.ID+"/related/"+b.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("add related: expected 204, got %d", rr.Code)
	}

	rr = request(mux, http.MethodDelete, "/api/tasks/"+a.ID+"/dependencies/"+b.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove dependency: expected 204, got %d", rr.Code)
	}
	rr = request(mux, http.MethodDelete, "/api/tasks/"+a.ID+"/dependencies/"+b.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second remove: expected 404, got %d", rr.Code)
	}
}

func TestSortEndpoint(t *testing.T) {
	_, mux := newTestHandlers(t)
	createTask(t, mux, "b task")
	createTask(t, mux, "a task")

	rr := request(mux, http.MethodPut, "/api/sort", map[string]string{"field": "title", "direction": "asc"})
	if rr.Code != http.StatusOK {
		t.Fatalf("set sort: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = request(mux, http.MethodGet, "/api/tasks/view", nil)
	var tasks []task.Task
	json.NewDecoder(rr.Body).Decode(&tasks) //nolint:errcheck
	if len(tasks) != 2 || tasks[0].Title != "a task" {
		t.Fatalf("expected title asc order, got %+v", tasks)
	}

	rr = request(mux, http.MethodGet, "/api/sort", nil)
	var so task.Sort
	json.NewDecoder(rr.Body).Decode(&so) //nolint:errcheck
	if so.Field != task.SortByTitle || so.Direction != task.Asc {
		t.Errorf("expected persisted sort config, got %+v", so)
	}
}

func TestStatsEndpoint(t *testing.T) {
	_, mux := newTestHandlers(t)
	createTask(t, mux, "one")
	createTask(t, mux, "two")

	rr := request(mux, http.MethodGet, "/api/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var stats task.Stats
	json.NewDecoder(rr.Body).Decode(&stats) //nolint:errcheck
	if stats.Total != 2 || stats.Todo != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGetTask_NotFound(t *testing.T) {
	_, mux := newTestHandlers(t)

	rr := request(mux, http.MethodGet, "/api/tasks/no-such-id", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
