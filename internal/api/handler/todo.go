package handler

import (
	"encoding/json"
	"net/http"

	"github.com/voltio/gridbase/internal/api/jsonapi"
	"github.com/voltio/gridbase/internal/api/middleware"
	"github.com/voltio/gridbase/internal/project"
)

// TodoHandler serves the legacy /api/v1/todos routes kept for backward
// compatibility. Todos are scoped to the authenticated user only; no
// organization is involved.
type TodoHandler struct {
	svc *project.Service
}

// NewTodoHandler creates a TodoHandler.
func NewTodoHandler(svc *project.Service) *TodoHandler {
	return &TodoHandler{svc: svc}
}

// List handles GET /api/v1/todos.
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	todos, err := h.svc.ListTodos(r.Context(), claims.UserID)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	data := make([]any, 0, len(todos))
	for _, t := range todos {
		data = append(data, jsonapi.ResourceObject{Type: "todos", ID: t.ID, Attributes: t})
	}
	jsonapi.RenderList(w, http.StatusOK, data)
}

// Create handles POST /api/v1/todos.
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	t, err := h.svc.CreateTodo(r.Context(), claims.UserID, req.Title, req.Message)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, jsonapi.ResourceObject{Type: "todos", ID: t.ID, Attributes: t})
}
