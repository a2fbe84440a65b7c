package task

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"bookshelf/internal/httpx"
)

type HTTPHandler struct {
	queue  Queue
	recent RecentList
	logger *slog.Logger
}

func NewHTTPHandler(queue Queue, recent RecentList, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{queue: queue, recent: recent, logger: logger.With("component", "task_handler")}
}

type submitResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

type recentResponse struct {
	Tasks []Info `json:"tasks"`
}

// Sum handles POST /compute/sum?a&b
func (h *HTTPHandler) Sum(w http.ResponseWriter, r *http.Request) {
	args, ok := queryArgs(w, r, "a", "b")
	if !ok {
		return
	}
	h.submit(w, r, NameSum, args, "Sum task submitted.")
}

// Factorial handles POST /compute/factorial?n
func (h *HTTPHandler) Factorial(w http.ResponseWriter, r *http.Request) {
	args, ok := queryArgs(w, r, "n")
	if !ok {
		return
	}
	h.submit(w, r, NameFactorial, args, "Factorial task submitted.")
}

// Recent handles GET /tasks/recent
func (h *HTTPHandler) Recent(w http.ResponseWriter, r *http.Request) {
	ids, err := h.recent.List(r.Context())
	if err != nil {
		h.logger.Error("list recent tasks", "error", err)
		httpx.JSONErrorWithRequest(r, w, http.StatusServiceUnavailable, "RECENT_UNAVAILABLE", "Recent task list is unavailable", nil)
		return
	}

	tasks := make([]Info, 0, len(ids))
	for _, id := range ids {
		info, err := h.queue.Info(r.Context(), id)
		if err != nil {
			h.logger.Warn("poll task", "task_id", id, "error", err)
			info = Info{ID: id, Status: StatusPending}
		}
		tasks = append(tasks, info)
	}
	httpx.JSON(w, http.StatusOK, recentResponse{Tasks: tasks})
}

func (h *HTTPHandler) submit(w http.ResponseWriter, r *http.Request, name string, args Args, message string) {
	id, err := h.queue.Submit(r.Context(), name, args)
	if err != nil {
		switch {
		case errors.Is(err, ErrQueueFull), errors.Is(err, ErrQueueClosed):
			httpx.JSONErrorWithRequest(r, w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Task queue is not accepting work", nil)
		default:
			h.logger.Error("submit task", "task_name", name, "error", err)
			httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		}
		return
	}

	if err := h.recent.Push(r.Context(), id); err != nil {
		h.logger.Warn("record recent task", "task_id", id, "error", err)
	}
	httpx.JSON(w, http.StatusOK, submitResponse{TaskID: id, Message: message})
}

func queryArgs(w http.ResponseWriter, r *http.Request, names ...string) (Args, bool) {
	q := r.URL.Query()
	args := make(Args, len(names))
	var details []httpx.ErrorDetail
	for _, name := range names {
		v, err := strconv.ParseInt(q.Get(name), 10, 64)
		if err != nil {
			details = append(details, httpx.ErrorDetail{Field: name, Message: "must be an integer"})
			continue
		}
		args[name] = v
	}
	if len(details) > 0 {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "INVALID_ARGUMENT", "Query arguments must be integers", details)
		return nil, false
	}
	return args, true
}
