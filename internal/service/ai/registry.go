package ai

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrDuplicateAgent is returned when an agent name is registered twice.
var ErrDuplicateAgent = errors.New("agent already registered")

// Agent bundles a system prompt, a tool set and routing keywords for one
// class of inbound intents. Agents are registered at startup and never
// mutated afterwards, so routing reads need no locking.
type Agent struct {
	Name         string
	Description  string
	SystemPrompt string
	Tools        []*ToolSpec
	Keywords     []string
}

// Registry holds the registered agents in registration order.
type Registry struct {
	agents []*Agent
	byName map[string]*Agent
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Agent)}
}

// Register adds an agent. Startup only; duplicate names are rejected.
func (r *Registry) Register(agent *Agent) error {
	if agent == nil || agent.Name == "" {
		return errors.New("agent name is required")
	}
	if _, ok := r.byName[agent.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, agent.Name)
	}
	r.byName[agent.Name] = agent
	r.agents = append(r.agents, agent)
	log.Printf("[registry] registered agent: %s", agent.Name)
	return nil
}

// Route picks the agent whose keywords match the inbound text. Agents are
// scanned in registration order and the first match wins; nil means the
// general conversational path handles the message.
func (r *Registry) Route(text string) *Agent {
	lower := strings.ToLower(text)
	for _, agent := range r.agents {
		for _, kw := range agent.Keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return agent
			}
		}
	}
	return nil
}

// Get returns a registered agent by name.
func (r *Registry) Get(name string) (*Agent, bool) {
	agent, ok := r.byName[name]
	return agent, ok
}

// List describes the registered agents, mainly for startup logging.
func (r *Registry) List() []string {
	out := make([]string, 0, len(r.agents))
	for _, agent := range r.agents {
		out = append(out, fmt.Sprintf("%s: %s", agent.Name, agent.Description))
	}
	return out
}
