package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/taskmaster/taskmaster/internal/agent"
	"github.com/taskmaster/taskmaster/internal/conversation"
	"github.com/taskmaster/taskmaster/internal/intelligence"
	"github.com/taskmaster/taskmaster/internal/llm"
	"github.com/taskmaster/taskmaster/internal/parser"
	"github.com/taskmaster/taskmaster/internal/store"
	"github.com/taskmaster/taskmaster/internal/taskops"
	"github.com/taskmaster/taskmaster/internal/types"
)

// userHeader names the requesting user in single-tenant deployments.
const userHeader = "X-User-ID"

// API holds the handler dependencies.
type API struct {
	svc    *taskops.Service
	store  *store.Store
	parser parser.TaskParser
	engine *intelligence.Engine
	client llm.Client
	logger *log.Logger

	defaultUserID int64
}

// NewAPI wires the HTTP surface.
func NewAPI(svc *taskops.Service, st *store.Store, p parser.TaskParser, engine *intelligence.Engine, client llm.Client, defaultUserID int64, logger *log.Logger) *API {
	return &API{
		svc:           svc,
		store:         st,
		parser:        p,
		engine:        engine,
		client:        client,
		logger:        logger,
		defaultUserID: defaultUserID,
	}
}

// Routes builds the request mux.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)

	mux.HandleFunc("POST /api/v1/tasks", a.handleCreateTask)
	mux.HandleFunc("GET /api/v1/tasks", a.handleListTasks)
	mux.HandleFunc("POST /api/v1/tasks/nl-create", a.handleNLCreate)
	mux.HandleFunc("GET /api/v1/tasks/search", a.handleSearchTasks)
	mux.HandleFunc("GET /api/v1/tasks/overdue", a.handleOverdueTasks)
	mux.HandleFunc("GET /api/v1/tasks/upcoming", a.handleUpcomingTasks)
	mux.HandleFunc("GET /api/v1/tasks/statistics", a.handleStatistics)
	mux.HandleFunc("GET /api/v1/tasks/insights/productivity", a.handleProductivityInsights)
	mux.HandleFunc("GET /api/v1/tasks/{id}", a.handleGetTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", a.handleUpdateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", a.handleDeleteTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/complete", a.handleCompleteTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/breakdown", a.handleBreakdownTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}/insights", a.handleTaskInsights)

	mux.HandleFunc("POST /api/v1/chat", a.handleChat)
	mux.HandleFunc("GET /api/v1/chat/ws", a.handleChatWS)

	return mux
}

// apiResponse is the envelope every endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (a *API) userID(r *http.Request) int64 {
	if v := r.Header.Get(userHeader); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return a.defaultUserID
}

func writeJSON(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *API) writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, apiResponse{Success: true, Data: data, Message: message})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, store.ErrHasSubtasks),
		errors.Is(err, types.ErrInvalid),
		errors.Is(err, taskops.ErrSelfParent),
		errors.Is(err, taskops.ErrCycle):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		a.logger.Printf("internal error: %v", err)
		writeJSON(w, status, apiResponse{Success: false, Error: "internal server error"})
		return
	}
	writeJSON(w, status, apiResponse{Success: false, Error: err.Error()})
}

func (a *API) writeBadRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, apiResponse{Success: false, Error: fmt.Sprintf(format, args...)})
}

var requestDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseRequestDate(s string) (time.Time, error) {
	for _, layout := range requestDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want ISO 8601)", s)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeData(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}

type createTaskRequest struct {
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Status            string         `json:"status"`
	Priority          string         `json:"priority"`
	DueDate           *string        `json:"due_date"`
	EstimatedDuration *int           `json:"estimated_duration"`
	ParentTaskID      *int64         `json:"parent_task_id"`
	Metadata          map[string]any `json:"metadata"`
	Tags              []string       `json:"tags"`
}

func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeBadRequest(w, "invalid request body: %s", err)
		return
	}

	in := taskops.CreateTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		Status:            types.TaskStatus(req.Status),
		Priority:          types.Priority(req.Priority),
		EstimatedDuration: req.EstimatedDuration,
		ParentTaskID:      req.ParentTaskID,
		Metadata:          req.Metadata,
		Tags:              req.Tags,
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := parseRequestDate(*req.DueDate)
		if err != nil {
			a.writeBadRequest(w, "due_date: %s", err)
			return
		}
		in.DueDate = &due
	}

	task, err := a.svc.Create(r.Context(), a.userID(r), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, task, "Task created successfully")
}

// taskListResponse paginates list results.
type taskListResponse struct {
	Tasks    []types.Task `json:"tasks"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	HasMore  bool         `json:"has_more"`
}

func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := a.userID(r)

	filter := store.TaskFilter{
		Offset: queryInt(q.Get("skip"), 0),
		Limit:  queryInt(q.Get("limit"), 50),
	}
	if s := q.Get("status"); s != "" {
		status, err := types.ParseStatus(s)
		if err != nil {
			a.writeError(w, err)
			return
		}
		filter.Status = &status
	}
	if s := q.Get("priority"); s != "" {
		priority, err := types.ParsePriority(s)
		if err != nil {
			a.writeError(w, err)
			return
		}
		filter.Priority = &priority
	}
	if q.Get("include_subtasks") == "false" {
		filter.TopLevelOnly = true
	}

	tasks, err := a.svc.List(r.Context(), userID, filter)
	if err != nil {
		a.writeError(w, err)
		return
	}
	stats, err := a.svc.Statistics(r.Context(), userID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	pageSize := filter.Limit
	if pageSize <= 0 {
		pageSize = 50
	}
	a.writeData(w, http.StatusOK, taskListResponse{
		Tasks:    tasks,
		Total:    stats.Total,
		Page:     filter.Offset/pageSize + 1,
		PageSize: pageSize,
		HasMore:  filter.Offset+pageSize < stats.Total,
	}, "")
}

func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	task, err := a.svc.Get(r.Context(), id, a.userID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, task, "")
}

type updateTaskRequest struct {
	Title             *string           `json:"title"`
	Description       *string           `json:"description"`
	Status            *types.TaskStatus `json:"status"`
	Priority          *types.Priority   `json:"priority"`
	DueDate           *string           `json:"due_date"`
	EstimatedDuration *int              `json:"estimated_duration"`
	ActualDuration    *int              `json:"actual_duration"`
	ParentTaskID      *int64            `json:"parent_task_id"`
	Metadata          map[string]any    `json:"metadata"`
}

func (a *API) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeBadRequest(w, "invalid request body: %s", err)
		return
	}

	in := taskops.UpdateTaskInput{
		Title:             req.Title,
		Description:       req.Description,
		Status:            req.Status,
		Priority:          req.Priority,
		EstimatedDuration: req.EstimatedDuration,
		ActualDuration:    req.ActualDuration,
		ParentTaskID:      req.ParentTaskID,
		Metadata:          req.Metadata,
	}
	if req.DueDate != nil {
		if *req.DueDate == "" {
			in.ClearDueDate = true
		} else {
			due, err := parseRequestDate(*req.DueDate)
			if err != nil {
				a.writeBadRequest(w, "due_date: %s", err)
				return
			}
			in.DueDate = &due
		}
	}

	task, err := a.svc.Update(r.Context(), id, a.userID(r), in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, task, "Task updated successfully")
}

func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	cascade := r.URL.Query().Get("cascade_subtasks") == "true"

	if err := a.svc.Delete(r.Context(), id, a.userID(r), cascade); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, map[string]int64{"id": id}, "Task deleted successfully")
}

func (a *API) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	var actual *int
	if v := r.URL.Query().Get("actual_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			a.writeBadRequest(w, "actual_duration must be a non-negative integer")
			return
		}
		actual = &n
	}

	task, err := a.svc.Complete(r.Context(), id, a.userID(r), actual)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, task, "Task marked as complete")
}

type nlCreateRequest struct {
	Message string         `json:"message"`
	Context map[string]any `json:"context"`
}

func (a *API) handleNLCreate(w http.ResponseWriter, r *http.Request) {
	var req nlCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeBadRequest(w, "invalid request body: %s", err)
		return
	}
	if req.Message == "" {
		a.writeBadRequest(w, "message is required")
		return
	}
	userID := a.userID(r)

	userCtx, err := a.store.UserContext(r.Context(), userID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	// Recent tasks supply category and priority hints the user has not
	// set explicitly.
	recent, err := a.svc.Recent(r.Context(), userID, 10)
	if err != nil {
		a.writeError(w, err)
		return
	}
	conversation.BuildTaskContext(recent).ApplyToPreferences(userCtx)

	if len(req.Context) > 0 {
		// Request-supplied hints override stored preferences.
		merged := make(map[string]any, len(userCtx.Preferences)+len(req.Context))
		for k, v := range userCtx.Preferences {
			merged[k] = v
		}
		for k, v := range req.Context {
			merged[k] = v
		}
		userCtx.Preferences = merged
	}

	parsed, err := a.parser.Parse(r.Context(), req.Message, userCtx)
	if err != nil {
		a.writeError(w, err)
		return
	}

	task, err := a.svc.Create(r.Context(), userID, taskops.CreateTaskInput{
		Title:             parsed.Title,
		Description:       parsed.Description,
		Priority:          parsed.Priority,
		DueDate:           parsed.DueDate,
		EstimatedDuration: parsed.EstimatedDuration,
		Tags:              parsed.Tags,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusCreated, task, "Task created successfully from natural language")
}

func (a *API) handleSearchTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if len(query) < 2 {
		a.writeBadRequest(w, "q must be at least 2 characters")
		return
	}

	tasks, err := a.svc.Search(r.Context(), a.userID(r), query,
		queryInt(q.Get("skip"), 0), queryInt(q.Get("limit"), 50))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, tasks, fmt.Sprintf("Found %d matching tasks", len(tasks)))
}

func (a *API) handleOverdueTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := a.svc.Overdue(r.Context(), a.userID(r),
		queryInt(q.Get("skip"), 0), queryInt(q.Get("limit"), 100))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, tasks, fmt.Sprintf("Found %d overdue tasks", len(tasks)))
}

func (a *API) handleUpcomingTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := queryInt(q.Get("days"), 7)
	if days < 1 || days > 30 {
		a.writeBadRequest(w, "days must be between 1 and 30")
		return
	}

	tasks, err := a.svc.Upcoming(r.Context(), a.userID(r), days,
		queryInt(q.Get("skip"), 0), queryInt(q.Get("limit"), 100))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, tasks, fmt.Sprintf("Found %d tasks due in next %d days", len(tasks), days))
}

func (a *API) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Statistics(r.Context(), a.userID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, stats, "Statistics retrieved successfully")
}

func (a *API) handleBreakdownTask(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}
	userID := a.userID(r)

	task, err := a.svc.Get(r.Context(), id, userID)
	if err != nil {
		a.writeError(w, err)
		return
	}

	titles := a.engine.SuggestBreakdown(r.Context(), task.Title, task.Description)
	subtasks, err := a.svc.CreateSubtasks(r.Context(), id, userID, titles)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, subtasks, fmt.Sprintf("Created %d subtasks", len(subtasks)))
}

func (a *API) handleTaskInsights(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	task, err := a.svc.Get(r.Context(), id, a.userID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}

	analysis := a.engine.AnalyzeTask(r.Context(), task)
	a.writeData(w, http.StatusOK, analysis, "Insights generated successfully")
}

func (a *API) handleProductivityInsights(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Statistics(r.Context(), a.userID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}

	insights := a.engine.Insights(r.Context(), stats)
	a.writeData(w, http.StatusOK, insights, "Productivity insights generated successfully")
}

type chatRequest struct {
	Message string `json:"message"`
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeBadRequest(w, "invalid request body: %s", err)
		return
	}
	if req.Message == "" {
		a.writeBadRequest(w, "message is required")
		return
	}

	response, err := a.runChatTurn(r.Context(), a.userID(r), req.Message)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeData(w, http.StatusOK, response, "Agent processed request")
}

// runChatTurn executes one agent exchange and persists both sides.
func (a *API) runChatTurn(ctx context.Context, userID int64, message string) (string, error) {
	manager, err := conversation.NewManager(ctx, a.store, userID)
	if err != nil {
		return "", err
	}

	tools := agent.NewTools(a.svc, userID)
	ag := agent.New(a.client, tools, a.logger)
	response := ag.Run(ctx, message, manager.ModelMessages())

	if err := manager.AddMessage(ctx, types.RoleUser, message, nil, true); err != nil {
		return "", err
	}
	if err := manager.AddMessage(ctx, types.RoleAssistant, response, nil, true); err != nil {
		return "", err
	}
	return response, nil
}

func (a *API) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		a.writeBadRequest(w, "invalid task id %q", r.PathValue("id"))
		return 0, false
	}
	return id, true
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
