// Package agents wraps one completion call per role: planning, code
// generation, critique and synthesis. Each agent renders its prompt, calls
// the provider with its own model and parses the reply into domain types.
package agents

import (
	"context"
	"fmt"
	"strings"

	"solver/internal/llm"
	"solver/internal/logging"
	"solver/internal/prompts"
)

// Models selects the model each role talks to.
type Models struct {
	Planner     string `mapstructure:"planner" yaml:"planner" validate:"required"`
	Generator   string `mapstructure:"generator" yaml:"generator" validate:"required"`
	Critic      string `mapstructure:"critic" yaml:"critic" validate:"required"`
	Synthesizer string `mapstructure:"synthesizer" yaml:"synthesizer" validate:"required"`
}

// DefaultModels uses one model for every role.
func DefaultModels(model string) Models {
	return Models{Planner: model, Generator: model, Critic: model, Synthesizer: model}
}

// Team bundles the four role agents sharing one provider.
type Team struct {
	Planner     *Planner
	Generator   *CodeGenerator
	Critic      *Critic
	Synthesizer *Synthesizer
}

// Option tunes a Team.
type Option func(*base)

// WithLogger sets the logger used by every agent.
func WithLogger(logger logging.Logger) Option {
	return func(b *base) {
		if !logging.IsNil(logger) {
			b.logger = logger
		}
	}
}

// WithPromptLoader overrides the embedded prompts.
func WithPromptLoader(loader *prompts.PromptLoader) Option {
	return func(b *base) {
		if loader != nil {
			b.prompts = loader
		}
	}
}

// NewTeam builds the four agents over provider.
func NewTeam(provider llm.Provider, models Models, feedbackTokens int, opts ...Option) *Team {
	b := base{provider: provider, prompts: prompts.MustNewPromptLoader(), logger: logging.NewComponentLogger("agents")}
	for _, opt := range opts {
		opt(&b)
	}
	with := func(role, model string) base {
		agent := b
		agent.role = role
		agent.model = model
		return agent
	}
	planner := with(llm.RolePlanner, models.Planner)
	planner.jsonReply = true
	return &Team{
		Planner:     &Planner{base: planner},
		Generator:   &CodeGenerator{base: with(llm.RoleGenerator, models.Generator), feedbackTokens: feedbackTokens},
		Critic:      &Critic{base: with(llm.RoleCritic, models.Critic)},
		Synthesizer: &Synthesizer{base: with(llm.RoleSynthesizer, models.Synthesizer)},
	}
}

// base is the shared plumbing of every agent.
type base struct {
	provider llm.Provider
	prompts  *prompts.PromptLoader
	logger   logging.Logger
	role     string
	model    string
	// jsonReply requests a JSON object reply from the provider.
	jsonReply bool
}

// complete renders the role's system and user prompts and issues one call.
func (b base) complete(ctx context.Context, system, user string, data any) (string, error) {
	systemPrompt, err := b.prompts.Render(system, data)
	if err != nil {
		return "", err
	}
	userPrompt, err := b.prompts.Render(user, data)
	if err != nil {
		return "", err
	}
	logger := logging.FromContext(ctx, b.logger)
	logger.Debug("%s request model=%s prompt_chars=%d", b.role, b.model, len(userPrompt))

	reply, err := b.provider.Complete(ctx, llm.Request{
		Role:   b.role,
		Model:  b.model,
		System: systemPrompt,
		Prompt: userPrompt,
		JSON:   b.jsonReply,
	})
	if err != nil {
		logger.Warn("%s completion failed: %v", b.role, err)
		return "", fmt.Errorf("%s completion: %w", b.role, err)
	}
	return strings.TrimSpace(reply), nil
}
