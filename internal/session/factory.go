package session

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/muhammadzainrehmani/ai-todo-agent/internal/agent"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/knowledge"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/llm"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/models"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/store"
	"github.com/muhammadzainrehmani/ai-todo-agent/internal/tools"
)

// ErrNoModel is returned when no language model is configured.
var ErrNoModel = errors.New("session: no model configured")

// AgentDeps holds what every per-connection agent shares.
type AgentDeps struct {
	Model         llm.Model
	Tasks         store.TaskStore
	Knowledge     *knowledge.Service
	ReadGuard     bool
	MaxModelCalls int
	Logger        zerolog.Logger
}

// Factory returns a NewAgentFunc that gives each user a fresh tool
// registry bound to their ID and an empty conversation.
func (d AgentDeps) Factory() NewAgentFunc {
	return func(user *models.User) (Agent, error) {
		if d.Model == nil {
			return nil, ErrNoModel
		}
		logger := d.Logger.With().Int64("user_id", user.ID).Logger()

		opts := []tools.Option{tools.WithLogger(logger)}
		if d.ReadGuard {
			opts = append(opts, tools.WithReadGuard())
		}

		var docs tools.DocumentSearcher
		if d.Knowledge != nil {
			docs = d.Knowledge.For(user.ID)
		}

		registry := tools.NewRegistry(user.ID, d.Tasks, docs, opts...)
		return agent.NewController(d.Model, registry, logger, agent.WithMaxModelCalls(d.MaxModelCalls)), nil
	}
}
