// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

// ParamType is the closed set of JSON schema types a tool parameter
// may declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

func validParamType(t ParamType) bool {
	switch t {
	case ParamString, ParamInteger, ParamBoolean, ParamArray, ParamObject:
		return true
	}
	return false
}

// ParamSpec declares one tool parameter.
type ParamSpec struct {
	Type        ParamType
	Description string
	Enum        []string
}

// ToolSpec declares a tool's callable surface for the model.
type ToolSpec struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	Required    []string
}

// ExecutorFunc is the function signature for tool implementations.
type ExecutorFunc func(args map[string]interface{}) (string, error)

// ToolResult represents the result of a tool execution. Result always
// carries text suitable for the model, even on failure.
type ToolResult struct {
	Function string
	Result   string
	Error    error
}

type registeredTool struct {
	spec ToolSpec
	fn   ExecutorFunc
}

// Registry holds all available tools with their implementations.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registeredTool
	logger zerolog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:  make(map[string]*registeredTool),
		logger: zerolog.Nop(),
	}
}

// SetLogger installs a logger for advisory dispatch diagnostics.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a tool. Registration errors are programming errors and
// the caller is expected to treat them as fatal.
func (r *Registry) Register(spec ToolSpec, fn ExecutorFunc) error {
	if spec.Name == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidSchema)
	}
	if fn == nil {
		return fmt.Errorf("%w: tool %s has no executor", ErrInvalidSchema, spec.Name)
	}
	for name, param := range spec.Params {
		if !validParamType(param.Type) {
			return fmt.Errorf("%w: tool %s parameter %s has unknown type %q", ErrInvalidSchema, spec.Name, name, param.Type)
		}
	}
	for _, required := range spec.Required {
		if _, ok := spec.Params[required]; !ok {
			return fmt.Errorf("%w: tool %s requires undeclared parameter %s", ErrInvalidSchema, spec.Name, required)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, spec.Name)
	}
	r.tools[spec.Name] = &registeredTool{spec: spec, fn: fn}
	return nil
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns the registered tool specs, sorted by name.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, tool.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// OpenAITools exports the registry as OpenAI tool definitions.
func (r *Registry) OpenAITools() []openai.Tool {
	defs := make([]openai.Tool, 0)
	for _, spec := range r.Specs() {
		properties := make(map[string]interface{}, len(spec.Params))
		for name, param := range spec.Params {
			prop := map[string]interface{}{
				"type":        string(param.Type),
				"description": param.Description,
			}
			if len(param.Enum) > 0 {
				prop["enum"] = param.Enum
			}
			properties[name] = prop
		}
		required := spec.Required
		if required == nil {
			required = []string{}
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return defs
}

// Dispatch runs the named tool. Every failure mode is reported through
// ToolResult.Result so the model always receives text; Error carries
// the matching sentinel for callers that inspect it. The return value
// is named so the deferred recover can replace it when an executor
// panics mid-call.
func (r *Registry) Dispatch(name string, args map[string]interface{}) (result *ToolResult) {
	result = &ToolResult{Function: name}

	tool, exists := r.getTool(name)
	if !exists {
		result.Error = fmt.Errorf("%w: %s", ErrToolNotFound, name)
		result.Result = fmt.Sprintf("Error: Tool '%s' not found. Available tools: %v", name, r.Names())
		return result
	}

	if err := r.checkArgs(tool.spec, args); err != nil {
		result.Error = err
		result.Result = fmt.Sprintf("Error: %v", err)
		return result
	}

	defer func() {
		if rec := recover(); rec != nil {
			result.Error = fmt.Errorf("tool %s panicked: %v", name, rec)
			result.Result = fmt.Sprintf("Error: tool %s failed internally", name)
		}
	}()

	out, err := tool.fn(args)
	if err != nil {
		result.Error = NewToolExecutionError(name, err)
		result.Result = fmt.Sprintf("Error: %v", err)
		return result
	}
	result.Result = out
	return result
}

// DispatchToolCall decodes an OpenAI tool call payload and dispatches it.
func (r *Registry) DispatchToolCall(call openai.ToolCall) *ToolResult {
	name := call.Function.Name
	if name == "" {
		return &ToolResult{
			Function: "unknown_tool",
			Error:    fmt.Errorf("%w: tool call missing function name", ErrInvalidArguments),
			Result:   "Error: tool call missing function name",
		}
	}
	args := map[string]interface{}{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return &ToolResult{
				Function: name,
				Error:    fmt.Errorf("%w: %v", ErrInvalidArguments, err),
				Result:   fmt.Sprintf("Error: arguments for %s are not valid JSON", name),
			}
		}
	}
	return r.Dispatch(name, args)
}

// checkArgs enforces required and declared parameter names. Value type
// mismatches are logged but tolerated; executors coerce what they can.
func (r *Registry) checkArgs(spec ToolSpec, args map[string]interface{}) error {
	for _, required := range spec.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("%w: missing required parameter %s for %s", ErrInvalidArguments, required, spec.Name)
		}
	}
	for name, value := range args {
		param, declared := spec.Params[name]
		if !declared {
			return fmt.Errorf("%w: unknown parameter %s for %s", ErrInvalidArguments, name, spec.Name)
		}
		if value != nil && !typeMatches(value, param.Type) {
			r.logger.Warn().
				Str("tool", spec.Name).
				Str("param", name).
				Str("want", string(param.Type)).
				Msg("argument type mismatch")
		}
	}
	return nil
}

func typeMatches(value interface{}, t ParamType) bool {
	switch t {
	case ParamString:
		_, ok := value.(string)
		return ok
	case ParamInteger:
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == math.Trunc(v)
		}
		return false
	case ParamBoolean:
		_, ok := value.(bool)
		return ok
	case ParamArray:
		_, ok := value.([]interface{})
		return ok
	case ParamObject:
		_, ok := value.(map[string]interface{})
		return ok
	}
	return false
}

func (r *Registry) getTool(name string) (*registeredTool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}
