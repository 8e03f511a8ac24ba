package tools

import (
	"errors"
	"slices"
	"testing"

	"github.com/slighter12/quip-mcp-go/mcp/jsonrpc"
)

func TestCatalogOrderAndSchemas(t *testing.T) {
	catalog := NewCatalog("")
	tools := catalog.Tools()

	wantNames := []string{"read_document", "append_content", "prepend_content", "replace_content", "create_document"}
	if len(tools) != len(wantNames) {
		t.Fatalf("expected %d tools, got %d", len(wantNames), len(tools))
	}

	wantRequired := map[string][]string{
		"read_document":   {"threadId"},
		"append_content":  {"threadId", "content"},
		"prepend_content": {"threadId", "content"},
		"replace_content": {"threadId", "content"},
		"create_document": {"title", "content"},
	}

	for i, tool := range tools {
		if tool.Name != wantNames[i] {
			t.Errorf("tool %d: expected %s, got %s", i, wantNames[i], tool.Name)
		}
		if tool.Description == "" {
			t.Errorf("%s: description should not be empty", tool.Name)
		}
		if tool.InputSchema.Type != "object" {
			t.Errorf("%s: schema type should be object, got %s", tool.Name, tool.InputSchema.Type)
		}
		if !slices.Equal(tool.InputSchema.Required, wantRequired[tool.Name]) {
			t.Errorf("%s: required %v, want %v", tool.Name, tool.InputSchema.Required, wantRequired[tool.Name])
		}
		for _, name := range tool.InputSchema.Required {
			if _, ok := tool.InputSchema.Properties[name]; !ok {
				t.Errorf("%s: required field %s missing from properties", tool.Name, name)
			}
		}
	}
}

func TestCatalogPrefix(t *testing.T) {
	catalog := NewCatalog("quip_")

	if _, ok := catalog.Lookup("quip_append_content"); !ok {
		t.Fatal("prefixed name should resolve")
	}
	if _, ok := catalog.Lookup("append_content"); ok {
		t.Fatal("unprefixed name should not resolve when a prefix is set")
	}
	for _, name := range catalog.Names() {
		if name[:5] != "quip_" {
			t.Errorf("name %s missing prefix", name)
		}
	}
}

func TestCatalogDescriptorsAreCopies(t *testing.T) {
	catalog := NewCatalog("")
	descriptors := catalog.Descriptors()
	descriptors[0].Name = "changed"

	if _, ok := catalog.Lookup("read_document"); !ok {
		t.Fatal("mutating the copy must not affect the catalog")
	}
	if catalog.Tools()[0].Name != "read_document" {
		t.Fatal("catalog order changed after mutating the copy")
	}
}

func TestOperationIsEdit(t *testing.T) {
	for op, want := range map[Operation]bool{
		OperationRead:    false,
		OperationAppend:  true,
		OperationPrepend: true,
		OperationReplace: true,
		OperationCreate:  false,
	} {
		if op.IsEdit() != want {
			t.Errorf("%s: IsEdit() = %v, want %v", op, op.IsEdit(), want)
		}
	}
}

func TestToolErrorCodes(t *testing.T) {
	tests := []struct {
		err  *ToolError
		code jsonrpc.ErrorCode
	}{
		{newInvalidArgumentsError("threadId is required"), jsonrpc.ErrInvalidParams},
		{newUnknownToolError("x"), jsonrpc.ErrMethodNotFound},
		{NewDelegateError("boom", nil), jsonrpc.ErrServerError},
	}
	for _, tt := range tests {
		if tt.err.Code() != tt.code {
			t.Errorf("%s: code %d, want %d", tt.err.Kind, tt.err.Code(), tt.code)
		}
	}

	cause := errors.New("exit status 2")
	wrapped := NewDelegateError("stderr text", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("delegate error should unwrap to its cause")
	}
	if KindOf(wrapped) != KindDelegateFailure {
		t.Errorf("unexpected kind %q", KindOf(wrapped))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("plain errors have no kind")
	}
}
