package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/podushkina/schedmon/internal/export"
	"github.com/podushkina/schedmon/internal/manager"
	"github.com/podushkina/schedmon/internal/notify"
	"github.com/podushkina/schedmon/internal/remote"
	"github.com/podushkina/schedmon/internal/submit"
	"github.com/podushkina/schedmon/internal/task"
)

type Handler struct {
	manager *manager.Manager
	board   *notify.Board
}

func NewHandler(m *manager.Manager, board *notify.Board) *Handler {
	return &Handler{manager: m, board: board}
}

type CreateTaskRequest struct {
	Kind string `json:"kind"`
	submit.Input
}

type BatchRequest struct {
	Count  int    `json:"count"`
	Random bool   `json:"random"`
	Prompt string `json:"prompt"`
}

type BatchResponse struct {
	Submitted []string `json:"submitted"`
	Failed    int      `json:"failed"`
	Progress  []string `json:"progress"`
}

type SystemResponse struct {
	Connected    bool            `json:"connected"`
	SchedulerURL string          `json:"schedulerUrl"`
	SystemInfo   task.SystemInfo `json:"systemInfo"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	sort, ok := sortFromQuery(w, r)
	if !ok {
		return
	}
	if err := h.manager.Connect(r.Context(), sort); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.system())
}

// System returns the cached system info; refresh=true fetches it first.
func (h *Handler) System(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("refresh") == "true" {
		if err := h.manager.RefreshSystemInfo(r.Context()); err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
	}
	respondJSON(w, http.StatusOK, h.system())
}

func (h *Handler) system() SystemResponse {
	return SystemResponse{
		Connected:    h.manager.Connected(),
		SchedulerURL: h.manager.SchedulerURL(),
		SystemInfo:   h.manager.SystemInfo(),
	}
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		req.Kind = submit.KindImage
	}

	res, _, err := h.manager.Submit(r.Context(), req.Kind, req.Input)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var progress []string
	res, err := h.manager.RunBatch(r.Context(), manager.BatchOptions{
		Count:  req.Count,
		Random: req.Random,
		Prompt: req.Prompt,
	}, func(line string) { progress = append(progress, line) })
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	submitted := res.Submitted
	if submitted == nil {
		submitted = []string{}
	}
	respondJSON(w, http.StatusAccepted, BatchResponse{Submitted: submitted, Failed: res.Failed, Progress: progress})
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	sort, ok := sortFromQuery(w, r)
	if !ok {
		return
	}
	tasks, err := h.manager.Tasks(r.Context(), sort)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []task.Record{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, found, err := h.manager.Task(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ReloadTasks replaces the gallery with the scheduler's task list.
func (h *Handler) ReloadTasks(w http.ResponseWriter, r *http.Request) {
	sort, ok := sortFromQuery(w, r)
	if !ok {
		return
	}
	n, err := h.manager.LoadExisting(r.Context(), sort)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

func (h *Handler) ClearTasks(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Clear(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	active := h.board.Active()
	if active == nil {
		active = []notify.Notification{}
	}
	respondJSON(w, http.StatusOK, active)
}

// Export returns the gallery snapshot as a JSON download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	doc, err := h.manager.Export(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(doc.Timestamp)+`"`)
	respondJSON(w, http.StatusOK, doc)
}

func sortFromQuery(w http.ResponseWriter, r *http.Request) (task.SortOptions, bool) {
	q := r.URL.Query()
	opts, err := task.ParseSortOptions(q.Get("sort_by"), q.Get("sort_order"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return opts, false
	}
	return opts, true
}

func statusFor(err error) int {
	var (
		rf  *remote.RequestFailedError
		net *remote.NetworkError
	)
	switch {
	case remote.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrNotConnected):
		return http.StatusConflict
	case errors.As(err, &rf), errors.As(err, &net):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
