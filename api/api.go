// Package api turns parsed requests into repository calls and structured responses.
//
// The core works on [Request] and [Response] and knows nothing about the
// transport. Adapters translate API Gateway proxy events ([Handler.HandleLambda])
// and gin requests ([RegisterRoutes]) into that shape. Authorization happens
// before a request reaches the core: an API Gateway authorizer in production,
// the [RequireOwner] middleware on the dev server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/jacentio/todo/auth"
	"github.com/jacentio/todo/internal/keys"
	"github.com/jacentio/todo/model"
	"github.com/jacentio/todo/repository"
	"github.com/jacentio/todo/store"
)

// Request is a transport-independent inbound request.
type Request struct {
	Method   string
	Resource string
	Headers  map[string]string
	Query    map[string]string
	Body     []byte
}

// Response is a status code plus the JSON envelope.
type Response struct {
	Status int
	Body   Body
}

// Body is the JSON envelope of every response.
type Body struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type route struct {
	method   string
	resource string
}

type operation func(ctx context.Context, userID string, req Request) Response

// Handler dispatches requests to the repositories.
type Handler struct {
	repos  *repository.Repositories
	logger *slog.Logger
	ops    map[route]operation
}

// New creates a Handler. A nil logger uses slog.Default().
func New(repos *repository.Repositories, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{repos: repos, logger: logger}
	h.ops = map[route]operation{
		{http.MethodGet, "/settings"}:         h.getSettings,
		{http.MethodPatch, "/settings"}:       h.updateSettings,
		{http.MethodGet, "/categories"}:       h.listCategories,
		{http.MethodPost, "/categories"}:      h.createCategory,
		{http.MethodPatch, "/categories"}:     h.updateCategory,
		{http.MethodDelete, "/categories"}:    h.deleteCategory,
		{http.MethodGet, "/tasks"}:            h.listTasks,
		{http.MethodGet, "/task"}:             h.getTask,
		{http.MethodPost, "/tasks"}:           h.createTask,
		{http.MethodPatch, "/tasks"}:          h.updateTask,
		{http.MethodDelete, "/tasks"}:         h.deleteTask,
		{http.MethodGet, "/notifications"}:    h.listNotifications,
		{http.MethodPost, "/notifications"}:   h.createNotification,
		{http.MethodPatch, "/notifications"}:  h.updateNotification,
		{http.MethodDelete, "/notifications"}: h.deleteNotification,
		{http.MethodDelete, "/user"}:          h.deleteUser,
	}
	return h
}

// Routes returns every (method, resource) pair the handler serves, sorted.
func (h *Handler) Routes() [][2]string {
	out := make([][2]string, 0, len(h.ops))
	for r := range h.ops {
		out = append(out, [2]string{r.method, r.resource})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][1] != out[j][1] {
			return out[i][1] < out[j][1]
		}
		return out[i][0] < out[j][0]
	})
	return out
}

// Handle runs the operation addressed by req.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	op, ok := h.ops[route{req.Method, req.Resource}]
	if !ok {
		return Response{Status: http.StatusNotFound, Body: Body{
			Message: "route not found",
			Error:   fmt.Sprintf("%s %s", req.Method, req.Resource),
		}}
	}

	userID := auth.Header(req.Headers, auth.HeaderUserID)
	if !keys.ValidID(userID) {
		return h.fail(ctx, req, model.Invalid(auth.HeaderUserID, "header is required"))
	}
	return op(ctx, userID, req)
}

// ok builds a 200 response.
func ok(message string, data any) Response {
	return Response{Status: http.StatusOK, Body: Body{Message: message, Data: data}}
}

// fail maps err onto a status: validation 400, not found 404, anything else 500.
func (h *Handler) fail(ctx context.Context, req Request, err error) Response {
	switch {
	case model.IsValidation(err):
		return Response{Status: http.StatusBadRequest, Body: Body{Message: "invalid request", Error: err.Error()}}
	case errors.Is(err, store.ErrNotFound):
		return Response{Status: http.StatusNotFound, Body: Body{Message: "not found", Error: err.Error()}}
	}

	h.logger.ErrorContext(ctx, "request failed",
		"method", req.Method,
		"resource", req.Resource,
		"error", err,
	)
	return Response{Status: http.StatusInternalServerError, Body: Body{
		Message: "internal error",
		Error:   "the request could not be completed",
	}}
}

// queryID returns a required id from the query string.
func queryID(req Request, name string) (string, error) {
	id := req.Query[name]
	if id == "" {
		return "", model.Invalid(name, "query parameter is required")
	}
	if !keys.ValidID(id) {
		return "", model.Invalid(name, "invalid id")
	}
	return id, nil
}

// decode reads the JSON body into v, rejecting unknown fields.
func decode(req Request, v any) error {
	if len(bytes.TrimSpace(req.Body)) == 0 {
		return model.Invalid("body", "is required")
	}

	dec := json.NewDecoder(bytes.NewReader(req.Body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Invalid("body", "malformed JSON: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return model.Invalid("body", "trailing data after JSON object")
	}
	return nil
}
