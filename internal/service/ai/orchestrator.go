package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"aimessage/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const generalSystemPrompt = `You are a helpful AI assistant for a messaging application.
Respond to the user's message in a friendly, helpful way.
Keep your response concise and conversational.
You can help with various tasks including managing reports and general questions.
Plain text only, no special characters or emojis.`

const (
	fallbackReply = "I apologize, but I'm having trouble responding right now. Please try again later."
	emptyReply    = "I didn't understand that. Can you try again?"
)

// Orchestrator drives the routing and tool-calling loop for one inbound
// message at a time. It never returns an error: irrecoverable failures
// become the fallback reply, with only the inbound turn recorded so the
// conversation stays continuous.
type Orchestrator struct {
	store        *ConversationStore
	registry     *Registry
	executor     *Executor
	model        model.ToolCallingChatModel
	generalTools []*ToolSpec
	maxToolHops  int
	modelTimeout time.Duration
}

// Options tunes the orchestrator loop.
type Options struct {
	GeneralTools []*ToolSpec
	MaxToolHops  int
	ModelTimeout time.Duration
}

func NewOrchestrator(store *ConversationStore, registry *Registry, executor *Executor, chatModel model.ToolCallingChatModel, opts Options) *Orchestrator {
	if opts.MaxToolHops <= 0 {
		opts.MaxToolHops = 4
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:        store,
		registry:     registry,
		executor:     executor,
		model:        chatModel,
		generalTools: opts.GeneralTools,
		maxToolHops:  opts.MaxToolHops,
		modelTimeout: opts.ModelTimeout,
	}
}

// Process routes the inbound text, runs the model loop and returns the final
// reply text. History gains the inbound and reply turns on success, the
// inbound turn only on failure.
func (o *Orchestrator) Process(ctx context.Context, userID int64, text string) string {
	history := o.store.Snapshot(userID)
	inbound := models.NewTurn(models.RoleUser, text)

	agent := o.registry.Route(text)
	systemPrompt := generalSystemPrompt
	toolSpecs := o.generalTools
	if agent != nil {
		log.Printf("[orchestrator] user %d routed to agent %s", userID, agent.Name)
		systemPrompt = agent.SystemPrompt
		toolSpecs = agent.Tools
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			msgs = append(msgs, schema.UserMessage(turn.Content))
		case models.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(turn.Content, nil))
		}
	}
	msgs = append(msgs, schema.UserMessage(text))

	chatModel := o.model
	if len(toolSpecs) > 0 {
		infos := make([]*schema.ToolInfo, 0, len(toolSpecs))
		for _, spec := range toolSpecs {
			infos = append(infos, spec.Info())
		}
		bound, err := o.model.WithTools(infos)
		if err != nil {
			log.Printf("[orchestrator] bind tools for user %d failed: %v", userID, err)
			o.store.Append(userID, inbound)
			return fallbackReply
		}
		chatModel = bound
	}

	reply, err := o.converse(ctx, chatModel, msgs, userID)
	if err != nil {
		log.Printf("[orchestrator] user %d: %v", userID, err)
		o.store.Append(userID, inbound)
		return fallbackReply
	}

	reply = asciiOnly(reply)
	if strings.TrimSpace(reply) == "" {
		reply = emptyReply
	}
	o.store.AppendExchange(userID, inbound, models.NewTurn(models.RoleAssistant, reply))
	return reply
}

// converse runs the bounded tool-calling loop until the model returns plain
// text. Tool failures are fed back to the model as tool results; model
// failures and an exhausted hop budget abort the turn.
func (o *Orchestrator) converse(ctx context.Context, chatModel model.ToolCallingChatModel, msgs []*schema.Message, userID int64) (string, error) {
	for hop := 0; ; hop++ {
		genCtx, cancel := context.WithTimeout(ctx, o.modelTimeout)
		resp, err := chatModel.Generate(genCtx, msgs)
		cancel()
		if err != nil {
			return "", fmt.Errorf("model generate: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}
		if hop >= o.maxToolHops {
			return "", fmt.Errorf("tool hop limit (%d) exceeded", o.maxToolHops)
		}

		msgs = append(msgs, resp)
		for _, call := range resp.ToolCalls {
			result, err := o.executor.Execute(ctx, call.Function.Name, call.Function.Arguments, userID)
			if err != nil {
				var toolErr *ToolError
				if errors.As(err, &toolErr) {
					result = "Error: " + toolErr.Message
				} else {
					result = "Error: " + err.Error()
				}
				log.Printf("[orchestrator] tool %s for user %d failed: %v", call.Function.Name, userID, err)
			} else {
				log.Printf("[orchestrator] tool %s executed for user %d", call.Function.Name, userID)
			}
			msgs = append(msgs, schema.ToolMessage(result, call.ID, schema.WithToolName(call.Function.Name)))
		}
	}
}

// ClearHistory drops the user's context window.
func (o *Orchestrator) ClearHistory(userID int64) {
	o.store.Clear(userID)
}

// asciiOnly strips characters the downstream SMS channel cannot carry.
func asciiOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
