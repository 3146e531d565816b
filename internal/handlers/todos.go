package handlers

import (
	"net/http"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/api/middleware"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
)

// Me returns the authenticated user with their tasks.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, middleware.CredentialsError)
		return
	}

	tasks, ok := h.listTasks(w, r, user.ID)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, UserResponse{ID: user.ID, Email: user.Email, Todos: tasks})
}

// ListTodos returns the authenticated user's tasks.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, middleware.CredentialsError)
		return
	}

	tasks, ok := h.listTasks(w, r, user.ID)
	if !ok {
		return
	}
	h.JSON(w, http.StatusOK, tasks)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request, ownerID int64) ([]models.Task, bool) {
	tasks, err := h.store.ListTasks(r.Context(), ownerID)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", ownerID).Msg("list tasks")
		h.Error(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if tasks == nil {
		tasks = []models.Task{}
	}
	return tasks, true
}
