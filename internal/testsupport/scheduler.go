// Package testsupport provides fakes shared by package tests.
package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/podushkina/schedmon/internal/task"
)

// Step is one scripted response for GET /api/v1/tasks/{id}.
type Step struct {
	// Code is the HTTP status to return; 0 means 200.
	Code int
	// Drop closes the connection without a response.
	Drop bool
	// Block holds the request open until the client gives up on it.
	Block bool
	// Body, when set, is written verbatim instead of Task.
	Body string
	Task task.APITask
}

// Upload records one request received by a generation endpoint.
type Upload struct {
	Path   string
	Fields []string
	Prompt string
}

// FakeScheduler is an in-process stand-in for the scheduler and generation
// endpoints.
type FakeScheduler struct {
	Server *httptest.Server

	mu          sync.Mutex
	nextID      int
	tasks       map[string]task.APITask
	order       []string
	scripts     map[string][]Step
	gets        map[string]int
	submissions []json.RawMessage
	uploads     []Upload
	listQueries []url.Values
	health      task.HealthResponse
	healthCode  int
	stats       task.StatsResponse
	submitCode  int
}

// NewFakeScheduler starts a fake closed automatically when the test ends.
func NewFakeScheduler(t testing.TB) *FakeScheduler {
	t.Helper()

	f := &FakeScheduler{
		tasks:   make(map[string]task.APITask),
		scripts: make(map[string][]Step),
		gets:    make(map[string]int),
		health:  task.HealthResponse{OnlineWorkers: 2, TotalWorkers: 3},
		stats:   task.StatsResponse{QueueLength: 4, TotalTasks: 17},
	}

	r := chi.NewRouter()
	r.Get("/health", f.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", f.handleStats)
		r.Post("/tasks", f.handleSubmit)
		r.Get("/tasks", f.handleList)
		r.Get("/tasks/{id}", f.handleGet)
	})
	r.Route("/web", func(r chi.Router) {
		r.Post("/scheduler_t2v", f.handleUpload)
		r.Post("/scheduler_i2v", f.handleUpload)
		r.Post("/scheduler_i2v_vace_fun", f.handleUpload)
		r.Post("/scheduler_infinite_talk", f.handleUpload)
	})

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeScheduler) URL() string { return f.Server.URL }

// WebURL is the base URL of the generation endpoints.
func (f *FakeScheduler) WebURL() string { return f.Server.URL + "/web" }

// Script queues responses for a task id. The last step repeats once the
// script is exhausted.
func (f *FakeScheduler) Script(id string, steps ...Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[id] = append(f.scripts[id], steps...)
}

// AddTask stores a task returned by list and get calls.
func (f *FakeScheduler) AddTask(t task.APITask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tasks[t.ID]; !ok {
		f.order = append(f.order, t.ID)
	}
	f.tasks[t.ID] = t
}

func (f *FakeScheduler) SetHealthStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthCode = code
}

func (f *FakeScheduler) SetSubmitStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCode = code
}

// Gets returns how many times the task was fetched.
func (f *FakeScheduler) Gets(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[id]
}

func (f *FakeScheduler) Submissions() []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]json.RawMessage(nil), f.submissions...)
}

func (f *FakeScheduler) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

func (f *FakeScheduler) ListQueries() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.listQueries...)
}

func (f *FakeScheduler) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	code, health := f.healthCode, f.health
	f.mu.Unlock()

	if code != 0 && code != http.StatusOK {
		http.Error(w, "unhealthy", code)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

func (f *FakeScheduler) handleStats(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	stats := f.stats
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, stats)
}

func (f *FakeScheduler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	if f.submitCode != 0 {
		code := f.submitCode
		f.mu.Unlock()
		http.Error(w, "rejected", code)
		return
	}
	f.submissions = append(f.submissions, body)
	id := f.newIDLocked()
	f.mu.Unlock()

	writeJSON(w, http.StatusCreated, task.SubmissionResponse{ID: id, Status: string(task.StatusPending)})
}

func (f *FakeScheduler) handleUpload(w http.ResponseWriter, r *http.Request) {
	upload := Upload{Path: r.URL.Path}
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		for field := range r.MultipartForm.File {
			upload.Fields = append(upload.Fields, field)
		}
	} else {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		upload.Prompt = body.Prompt
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, upload)
	id := f.newIDLocked()
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, task.SubmissionResponse{ID: id, Status: string(task.StatusPending)})
}

func (f *FakeScheduler) handleList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.listQueries = append(f.listQueries, r.URL.Query())
	tasks := make([]task.APITask, 0, len(f.order))
	for _, id := range f.order {
		tasks = append(tasks, f.tasks[id])
	}
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, task.TasksResponse{Tasks: tasks})
}

func (f *FakeScheduler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f.mu.Lock()
	f.gets[id]++
	var (
		step     Step
		scripted bool
	)
	if steps := f.scripts[id]; len(steps) > 0 {
		step, scripted = steps[0], true
		if len(steps) > 1 {
			f.scripts[id] = steps[1:]
		}
	}
	stored, found := f.tasks[id]
	f.mu.Unlock()

	if !scripted {
		if !found {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, stored)
		return
	}

	if step.Block {
		<-r.Context().Done()
		return
	}
	if step.Drop {
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, err := hj.Hijack()
			if err == nil {
				conn.Close()
				return
			}
		}
		panic(http.ErrAbortHandler)
	}
	if step.Code != 0 && step.Code != http.StatusOK {
		http.Error(w, http.StatusText(step.Code), step.Code)
		return
	}
	if step.Body != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(step.Body))
		return
	}
	if step.Task.ID == "" {
		step.Task.ID = id
	}
	writeJSON(w, http.StatusOK, step.Task)
}

func (f *FakeScheduler) newIDLocked() string {
	f.nextID++
	return fmt.Sprintf("t%d", f.nextID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
