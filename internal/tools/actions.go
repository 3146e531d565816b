package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
)

// stringArg returns a non-empty string argument, or nil when it is absent,
// null or empty.
func stringArg(args map[string]any, key string) *string {
	v, ok := args[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func boolArg(args map[string]any, key string) *bool {
	v, ok := args[key].(bool)
	if !ok {
		return nil
	}
	return &v
}

// idArg reads a validated integer argument.
func idArg(args map[string]any, key string) int64 {
	id, _ := toInt64(args[key])
	return id
}

func (r *Registry) createTodo(ctx context.Context, args map[string]any) Result {
	title, _ := args["title"].(string)
	if strings.TrimSpace(title) == "" {
		return failure("Error: title must not be empty")
	}
	description := stringArg(args, "description")

	task, err := r.tasks.CreateTask(ctx, r.ownerID, title, description)
	if err != nil {
		return failure("Error: %v", err)
	}

	r.remember(task.ID)
	return success("Success: Created task '%s' with ID %d", title, task.ID)
}

func (r *Registry) readTodos(ctx context.Context, args map[string]any) Result {
	tasks, err := r.tasks.ListTasks(ctx, r.ownerID)
	if err != nil {
		return failure("Error: %v", err)
	}
	if len(tasks) == 0 {
		return success("You have no tasks in your list.")
	}

	var b strings.Builder
	b.WriteString("Your Todo List:\n")
	ids := make([]int64, 0, len(tasks))
	for _, t := range tasks {
		b.WriteString(formatTask(t))
		ids = append(ids, t.ID)
	}

	r.remember(ids...)
	return success("%s", b.String())
}

func formatTask(t models.Task) string {
	status := "[ ]"
	if t.IsCompleted {
		status = "[x]"
	}
	description := "None"
	if t.Description != nil && *t.Description != "" {
		description = *t.Description
	}
	return fmt.Sprintf("ID %d: %s %s (Description: %s)\n", t.ID, status, t.Title, description)
}

func (r *Registry) updateTodo(ctx context.Context, args map[string]any) Result {
	id := idArg(args, "todo_id")
	if r.readGuard && !r.isKnown(id) {
		return failure("Error: Task ID %d has not been read in this conversation turn. Call 'read_todos' first to verify the ID.", id)
	}

	patch := models.TaskPatch{
		Title:       stringArg(args, "title"),
		Description: stringArg(args, "description"),
		IsCompleted: boolArg(args, "is_completed"),
	}

	if _, err := r.tasks.UpdateTask(ctx, r.ownerID, id, patch); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return failure("Error: Task with ID %d not found. Please use 'read_todos' to verify the ID.", id)
		}
		return failure("Error updating task: %v", err)
	}
	return success("Success: Updated task ID %d", id)
}

func (r *Registry) deleteTodo(ctx context.Context, args map[string]any) Result {
	id := idArg(args, "todo_id")
	if r.readGuard && !r.isKnown(id) {
		return failure("Error: Task ID %d has not been read in this conversation turn. Call 'read_todos' first to verify the ID.", id)
	}

	if err := r.tasks.DeleteTask(ctx, r.ownerID, id); err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return failure("Error: Task with ID %d not found. Read the list to check IDs.", id)
		}
		return failure("Error deleting task: %v", err)
	}
	return success("Success: Deleted task ID %d", id)
}

func (r *Registry) searchDocument(ctx context.Context, args map[string]any) Result {
	question, _ := args["question"].(string)

	info := knowledge.NoDocument
	if r.docs != nil {
		found, err := r.docs.Search(ctx, question)
		if err != nil {
			return failure("Error searching document: %v", err)
		}
		info = found
	}
	return success("Relevant info from document:\n%s", info)
}
