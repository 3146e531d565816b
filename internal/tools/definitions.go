package tools

import "github.com/mark3labs/mcp-go/mcp"

// Tool names exposed to the model.
const (
	CreateTodo     = "create_todo"
	ReadTodos      = "read_todos"
	UpdateTodo     = "update_todo"
	DeleteTodo     = "delete_todo"
	SearchDocument = "search_document"
)

// integer narrows a numeric property to whole numbers.
func integer() mcp.PropertyOption {
	return func(schema map[string]any) {
		schema["type"] = "integer"
	}
}

// Definitions returns the declarations of the five todo actions in the
// order they are offered to the model.
func Definitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool(CreateTodo,
			mcp.WithDescription("Use this to add a new task to the user's list."),
			mcp.WithString("title",
				mcp.Required(),
				mcp.Description("The title of the task."),
			),
			mcp.WithString("description",
				mcp.Description("Optional details."),
			),
		),
		mcp.NewTool(ReadTodos,
			mcp.WithDescription("Use this to see all current tasks for the user."),
		),
		mcp.NewTool(UpdateTodo,
			mcp.WithDescription("Use this to update a task's title, description, or completion status. Requires the numeric ID."),
			mcp.WithNumber("todo_id",
				mcp.Required(),
				integer(),
				mcp.Description("The numeric ID of the task to update."),
			),
			mcp.WithString("title",
				mcp.Description("New title."),
			),
			mcp.WithString("description",
				mcp.Description("New description."),
			),
			mcp.WithBoolean("is_completed",
				mcp.Description("True for done, False for pending."),
			),
		),
		mcp.NewTool(DeleteTodo,
			mcp.WithDescription("Use this to remove a task permanently. Requires the numeric ID."),
			mcp.WithNumber("todo_id",
				mcp.Required(),
				integer(),
				mcp.Description("The numeric ID of the task to delete."),
			),
		),
		mcp.NewTool(SearchDocument,
			mcp.WithDescription("Use this to answer questions about the document the user uploaded."),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description("The specific question to ask the document."),
			),
		),
	}
}
