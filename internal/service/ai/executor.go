package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloudwego/eino/schema"
)

// ToolErrorKind classifies tool failures surfaced back to the model loop.
type ToolErrorKind string

const (
	ToolErrUnknown   ToolErrorKind = "unknown_tool"
	ToolErrArguments ToolErrorKind = "invalid_arguments"
	ToolErrExecution ToolErrorKind = "execution_failed"
)

// ToolError is a structured tool failure. It is rendered as a tool result
// for the model, never raised past the orchestrator.
type ToolError struct {
	Kind    ToolErrorKind
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ToolSpec declares one callable surface offered to the model. Run always
// receives the server-bound caller user id; a user id supplied in args is
// ignored.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]*schema.ParameterInfo
	Run         func(ctx context.Context, callerUserID int64, args map[string]interface{}) (string, error)
}

// Info renders the tool as metadata for the chat model.
func (t *ToolSpec) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(t.Params),
	}
}

// Executor validates and runs tool calls requested by the model.
type Executor struct {
	tools map[string]*ToolSpec
}

func NewExecutor() *Executor {
	return &Executor{tools: make(map[string]*ToolSpec)}
}

// RegisterAgentTools makes an agent's tools callable. Name collisions keep
// the first registration, matching agent registration order.
func (e *Executor) RegisterAgentTools(agent *Agent) {
	for _, spec := range agent.Tools {
		if _, ok := e.tools[spec.Name]; ok {
			log.Printf("[executor] tool %s already registered, keeping first", spec.Name)
			continue
		}
		e.tools[spec.Name] = spec
	}
}

// RegisterTool adds a standalone tool (general conversational path).
func (e *Executor) RegisterTool(spec *ToolSpec) {
	if spec == nil || spec.Name == "" {
		return
	}
	if _, ok := e.tools[spec.Name]; !ok {
		e.tools[spec.Name] = spec
	}
}

// Execute validates rawArgs against the tool's declared parameters and runs
// it with the caller's user id bound server-side. All failures come back as
// *ToolError.
func (e *Executor) Execute(ctx context.Context, toolName, rawArgs string, callerUserID int64) (string, error) {
	spec, ok := e.tools[toolName]
	if !ok {
		return "", &ToolError{Kind: ToolErrUnknown, Message: fmt.Sprintf("tool %s is not available", toolName)}
	}

	args := make(map[string]interface{})
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return "", &ToolError{Kind: ToolErrArguments, Message: fmt.Sprintf("arguments are not valid JSON: %v", err)}
		}
	}
	if err := validateArgs(spec.Params, args); err != nil {
		return "", &ToolError{Kind: ToolErrArguments, Message: err.Error()}
	}

	// Never trust a caller-supplied identity; the tool sees only the id of
	// the user the orchestrator is processing.
	delete(args, "user_id")
	delete(args, "reporter_id")

	result, err := spec.Run(ctx, callerUserID, args)
	if err != nil {
		return "", &ToolError{Kind: ToolErrExecution, Message: err.Error()}
	}
	return result, nil
}

func validateArgs(params map[string]*schema.ParameterInfo, args map[string]interface{}) error {
	for name, info := range params {
		val, present := args[name]
		if !present {
			if info.Required {
				return fmt.Errorf("missing required parameter %q", name)
			}
			continue
		}
		if err := checkType(name, info, val); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, info *schema.ParameterInfo, val interface{}) error {
	switch info.Type {
	case schema.String:
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("parameter %q must be a string", name)
		}
		if len(info.Enum) > 0 {
			for _, allowed := range info.Enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("parameter %q must be one of %v", name, info.Enum)
		}
	case schema.Integer:
		f, ok := val.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("parameter %q must be an integer", name)
		}
	case schema.Number:
		if _, ok := val.(float64); !ok {
			return fmt.Errorf("parameter %q must be a number", name)
		}
	case schema.Boolean:
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean", name)
		}
	}
	return nil
}

// argInt64 extracts an integer argument that validateArgs already checked.
func argInt64(args map[string]interface{}, name string) int64 {
	f, _ := args[name].(float64)
	return int64(f)
}

// argString extracts a string argument, empty when absent.
func argString(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return s
}
