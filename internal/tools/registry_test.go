package tools

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func echoSpec(name string) ToolSpec {
	return ToolSpec{
		Name:        name,
		Description: "echoes its input",
		Params: map[string]ParamSpec{
			"text":  {Type: ParamString, Description: "text to echo"},
			"count": {Type: ParamInteger, Description: "repetitions"},
		},
		Required: []string{"text"},
	}
}

func echoExec(args map[string]interface{}) (string, error) {
	text, _ := args["text"].(string)
	return text, nil
}

func TestRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo"), echoExec); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result := r.Dispatch("echo", map[string]interface{}{"text": "hello"})
	if result.Error != nil {
		t.Fatalf("Dispatch error: %v", result.Error)
	}
	if result.Result != "hello" {
		t.Errorf("Result = %q, want %q", result.Result, "hello")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo"), echoExec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(echoSpec("echo"), echoExec); !errors.Is(err, ErrDuplicateTool) {
		t.Errorf("duplicate Register = %v, want ErrDuplicateTool", err)
	}
}

func TestRegisterInvalidSchema(t *testing.T) {
	r := NewRegistry()

	badType := echoSpec("bad_type")
	badType.Params["text"] = ParamSpec{Type: ParamType("number")}
	if err := r.Register(badType, echoExec); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("unknown param type = %v, want ErrInvalidSchema", err)
	}

	badRequired := echoSpec("bad_required")
	badRequired.Required = []string{"missing"}
	if err := r.Register(badRequired, echoExec); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("undeclared required = %v, want ErrInvalidSchema", err)
	}

	if err := r.Register(ToolSpec{}, echoExec); !errors.Is(err, ErrInvalidSchema) {
		t.Errorf("empty name = %v, want ErrInvalidSchema", err)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo"), echoExec); err != nil {
		t.Fatal(err)
	}

	result := r.Dispatch("nope", nil)
	if !errors.Is(result.Error, ErrToolNotFound) {
		t.Errorf("Error = %v, want ErrToolNotFound", result.Error)
	}
	if !strings.Contains(result.Result, "echo") {
		t.Errorf("Result should list available tools, got %q", result.Result)
	}
}

func TestDispatchArgumentChecks(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo"), echoExec); err != nil {
		t.Fatal(err)
	}

	missing := r.Dispatch("echo", map[string]interface{}{})
	if !errors.Is(missing.Error, ErrInvalidArguments) {
		t.Errorf("missing required = %v, want ErrInvalidArguments", missing.Error)
	}

	unknown := r.Dispatch("echo", map[string]interface{}{"text": "x", "bogus": 1})
	if !errors.Is(unknown.Error, ErrInvalidArguments) {
		t.Errorf("unknown param = %v, want ErrInvalidArguments", unknown.Error)
	}

	// A wrong value type is advisory only.
	mismatched := r.Dispatch("echo", map[string]interface{}{"text": "x", "count": "three"})
	if mismatched.Error != nil {
		t.Errorf("type mismatch should not fail dispatch: %v", mismatched.Error)
	}
}

func TestDispatchRecoversPanics(t *testing.T) {
	r := NewRegistry()
	spec := ToolSpec{Name: "boom", Description: "panics"}
	err := r.Register(spec, func(args map[string]interface{}) (string, error) {
		panic("kaboom")
	})
	if err != nil {
		t.Fatal(err)
	}

	result := r.Dispatch("boom", nil)
	if result == nil {
		t.Fatal("Dispatch must return a result even when the executor panics")
	}
	if result.Error == nil {
		t.Fatal("expected error from panicking tool")
	}
	if result.Result == "" {
		t.Error("panicking tool should still produce result text")
	}
	if !strings.Contains(result.Error.Error(), "kaboom") {
		t.Errorf("recovered panic value lost: %v", result.Error)
	}
}

func TestDispatchToolCall(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo"), echoExec); err != nil {
		t.Fatal(err)
	}

	ok := r.DispatchToolCall(openai.ToolCall{
		Function: openai.FunctionCall{Name: "echo", Arguments: `{"text":"hi"}`},
	})
	if ok.Error != nil || ok.Result != "hi" {
		t.Errorf("DispatchToolCall = (%q, %v)", ok.Result, ok.Error)
	}

	badJSON := r.DispatchToolCall(openai.ToolCall{
		Function: openai.FunctionCall{Name: "echo", Arguments: `{not json`},
	})
	if !errors.Is(badJSON.Error, ErrInvalidArguments) {
		t.Errorf("bad JSON = %v, want ErrInvalidArguments", badJSON.Error)
	}

	noName := r.DispatchToolCall(openai.ToolCall{})
	if noName.Error == nil {
		t.Error("missing function name should fail")
	}
}

func TestOpenAIToolsExport(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoSpec("echo"), echoExec); err != nil {
		t.Fatal(err)
	}

	defs := r.OpenAITools()
	if len(defs) != 1 {
		t.Fatalf("len(defs) = %d, want 1", len(defs))
	}
	def := defs[0]
	if def.Type != openai.ToolTypeFunction || def.Function.Name != "echo" {
		t.Errorf("unexpected definition: %+v", def)
	}
	params, ok := def.Function.Parameters.(map[string]interface{})
	if !ok {
		t.Fatalf("Parameters has type %T", def.Function.Parameters)
	}
	if params["type"] != "object" {
		t.Errorf("schema type = %v", params["type"])
	}
	props := params["properties"].(map[string]interface{})
	if _, ok := props["text"]; !ok {
		t.Error("text property missing from schema")
	}
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		spec := ToolSpec{Name: name, Description: name}
		if err := r.Register(spec, echoExec); err != nil {
			t.Fatal(err)
		}
	}
	names := r.Names()
	want := fmt.Sprintf("%v", []string{"alpha", "mid", "zeta"})
	if got := fmt.Sprintf("%v", names); got != want {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}
