package tools

import (
	"maps"
	"slices"

	"github.com/slighter12/quip-mcp-go/mcp"
)

// Operation identifies what a tool does to a document.
type Operation string

const (
	OperationRead    Operation = "read"
	OperationAppend  Operation = "append"
	OperationPrepend Operation = "prepend"
	OperationReplace Operation = "replace"
	OperationCreate  Operation = "create"
)

// IsEdit reports whether the operation stages content and calls the edit delegate.
func (o Operation) IsEdit() bool {
	switch o {
	case OperationAppend, OperationPrepend, OperationReplace:
		return true
	default:
		return false
	}
}

// pastTense is used for the default success text of edit operations.
func (o Operation) pastTense() string {
	switch o {
	case OperationAppend:
		return "appended"
	case OperationPrepend:
		return "prepended"
	case OperationReplace:
		return "replaced"
	default:
		return string(o) + "d"
	}
}

// Argument names shared by the catalog and the router.
const (
	ArgThreadID = "threadId"
	ArgContent  = "content"
	ArgTitle    = "title"
)

// Descriptor ties one advertised tool to the operation it performs. Required
// drives both the advertised schema and argument validation.
type Descriptor struct {
	Name        string
	Description string
	Operation   Operation
	Properties  []Property
}

// Property is one string argument of a tool.
type Property struct {
	Name        string
	Description string
	Required    bool
}

// Required lists the required argument names in declaration order.
func (d Descriptor) Required() []string {
	required := make([]string, 0, len(d.Properties))
	for _, p := range d.Properties {
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return required
}

// Tool renders the descriptor as an MCP tool definition.
func (d Descriptor) Tool() mcp.Tool {
	properties := make(map[string]any, len(d.Properties))
	for _, p := range d.Properties {
		properties[p.Name] = mcp.Property{Type: "string", Description: p.Description}
	}
	return mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: mcp.InputSchema{
			Type:       "object",
			Properties: properties,
			Required:   d.Required(),
		},
	}
}

// Catalog is the fixed, ordered set of document tools. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	descriptors []Descriptor
	byName      map[string]Descriptor
}

var threadIDProperty = Property{Name: ArgThreadID, Description: "The Quip document thread ID", Required: true}

func baseDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "read_document",
			Description: "Read the content of a Quip document by its thread ID",
			Operation:   OperationRead,
			Properties:  []Property{threadIDProperty},
		},
		{
			Name:        "append_content",
			Description: "Append content to an existing Quip document",
			Operation:   OperationAppend,
			Properties: []Property{
				threadIDProperty,
				{Name: ArgContent, Description: "Markdown content to append to the document", Required: true},
			},
		},
		{
			Name:        "prepend_content",
			Description: "Add content to the beginning of an existing Quip document",
			Operation:   OperationPrepend,
			Properties: []Property{
				threadIDProperty,
				{Name: ArgContent, Description: "Markdown content to prepend to the document", Required: true},
			},
		},
		{
			Name:        "replace_content",
			Description: "Replace content in an existing Quip document",
			Operation:   OperationReplace,
			Properties: []Property{
				threadIDProperty,
				{Name: ArgContent, Description: "New markdown content to replace the document content", Required: true},
			},
		},
		{
			Name:        "create_document",
			Description: "Create a new Quip document",
			Operation:   OperationCreate,
			Properties: []Property{
				{Name: ArgTitle, Description: "Title of the new document", Required: true},
				{Name: ArgContent, Description: "Initial markdown content for the document", Required: true},
			},
		},
	}
}

// NewCatalog builds the catalog, prepending prefix to every tool name.
func NewCatalog(prefix string) *Catalog {
	descriptors := baseDescriptors()
	byName := make(map[string]Descriptor, len(descriptors))
	for i := range descriptors {
		descriptors[i].Name = prefix + descriptors[i].Name
		byName[descriptors[i].Name] = descriptors[i]
	}
	return &Catalog{descriptors: descriptors, byName: byName}
}

// Tools returns the MCP tool definitions in catalog order.
func (c *Catalog) Tools() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(c.descriptors))
	for _, d := range c.descriptors {
		out = append(out, d.Tool())
	}
	return out
}

// Descriptors returns a copy of the catalog entries.
func (c *Catalog) Descriptors() []Descriptor {
	return slices.Clone(c.descriptors)
}

// Lookup finds a descriptor by its advertised name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Names returns the advertised tool names sorted alphabetically.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.byName))
}
