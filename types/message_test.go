package types

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	t.Parallel()

	sys := NewSystemMessage("be terse")
	if sys.Role != RoleSystem || sys.Content != "be terse" {
		t.Fatalf("unexpected system message: %+v", sys)
	}

	user := NewUserMessage("hi")
	if user.Role != RoleUser || user.Content != "hi" {
		t.Fatalf("unexpected user message: %+v", user)
	}

	calls := []ToolCall{{ID: "call_1", Name: "get_weather", Arguments: json.RawMessage(`{"location":"Paris"}`)}}
	assistant := NewToolCallMessage("let me check", calls)
	if !assistant.HasToolCalls() || assistant.Role != RoleAssistant {
		t.Fatalf("expected assistant tool-call message, got %+v", assistant)
	}

	result := NewToolResultMessage("call_1", "get_weather", `"18C"`)
	if !result.IsToolResult() {
		t.Fatalf("expected tool result message, got %+v", result)
	}
	if result.ToolCallID != "call_1" || result.Name != "get_weather" {
		t.Fatalf("unexpected tool result fields: %+v", result)
	}
}

func TestToolCall_ArgumentsMap(t *testing.T) {
	t.Parallel()

	tc := ToolCall{Name: "get_weather", Arguments: json.RawMessage(`{"location":"Paris","days":3}`)}
	args, err := tc.ArgumentsMap()
	if err != nil {
		t.Fatalf("ArgumentsMap failed: %v", err)
	}
	if args["location"] != "Paris" {
		t.Fatalf("unexpected location: %v", args["location"])
	}

	empty := ToolCall{Name: "noop"}
	args, err = empty.ArgumentsMap()
	if err != nil {
		t.Fatalf("ArgumentsMap on empty args failed: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("expected empty map, got %v", args)
	}

	bad := ToolCall{Name: "broken", Arguments: json.RawMessage(`not json`)}
	if _, err := bad.ArgumentsMap(); err == nil {
		t.Fatal("expected error for invalid arguments JSON")
	}
}

func TestToolResult_ToMessage(t *testing.T) {
	t.Parallel()

	ok := ToolResult{ToolCallID: "call_1", Name: "echo", Result: json.RawMessage(`{"ok":true}`)}
	msg := ok.ToMessage()
	if msg.Role != RoleTool || msg.ToolCallID != "call_1" || msg.Content != `{"ok":true}` {
		t.Fatalf("unexpected tool message: %+v", msg)
	}

	failed := ToolResult{ToolCallID: "call_2", Name: "echo", Error: "boom"}
	if !failed.IsError() {
		t.Fatal("expected IsError")
	}
	if got := failed.ToMessage().Content; got != "Error: boom" {
		t.Fatalf("unexpected error content: %q", got)
	}
}

func TestJSONSchema_Builder(t *testing.T) {
	t.Parallel()

	schema := NewObjectSchema().
		AddProperty("location", NewStringSchema().WithDescription("city name")).
		AddProperty("days", NewNumberSchema()).
		AddRequired("location")

	raw := schema.MustJSON()
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("schema did not round-trip: %v", err)
	}
	if decoded["type"] != "object" {
		t.Fatalf("unexpected type: %v", decoded["type"])
	}
	props, ok := decoded["properties"].(map[string]any)
	if !ok || props["location"] == nil || props["days"] == nil {
		t.Fatalf("unexpected properties: %v", decoded["properties"])
	}
}
