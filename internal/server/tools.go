package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Kind names a tool the relay knows how to build.
type Kind string

const (
	KindMySQLQuery Kind = "mysql_query"
	KindWebSearch  Kind = "web_search"
	KindSAMSearch  Kind = "sam_search"
)

// AllKinds lists every tool kind; NewRegistry must handle each of them.
var AllKinds = []Kind{KindMySQLQuery, KindWebSearch, KindSAMSearch}

// ParamError is a client-side problem with an execute envelope or its parameters.
type ParamError struct {
	Msg string
}

func (e *ParamError) Error() string { return e.Msg }

func missingParam(key string) error { return &ParamError{Msg: "Missing " + key + " parameter"} }
func invalidParam(key string) error { return &ParamError{Msg: "Invalid " + key + " parameter"} }

// Tool is one registered operation.
type Tool interface {
	Kind() Kind
	Description() string
	// Schema describes the parameter object the tool accepts.
	Schema() *jsonschema.Schema
	// Invoke validates params and then performs the work. Validation failures
	// are *ParamError and happen before any downstream call.
	Invoke(ctx context.Context, params json.RawMessage) (any, error)
}

// typedTool binds a parameter struct to a parse step and a downstream call.
type typedTool[P any] struct {
	kind     Kind
	desc     string
	schema   *jsonschema.Schema
	validate func(*P) error
	run      func(context.Context, P) (any, error)
}

func newTypedTool[P any](kind Kind, desc string, validate func(*P) error, run func(context.Context, P) (any, error)) *typedTool[P] {
	return &typedTool[P]{kind: kind, desc: desc, schema: schemaFor[P](), validate: validate, run: run}
}

func (t *typedTool[P]) Kind() Kind                 { return t.kind }
func (t *typedTool[P]) Description() string        { return t.desc }
func (t *typedTool[P]) Schema() *jsonschema.Schema { return t.schema }

func (t *typedTool[P]) Invoke(ctx context.Context, params json.RawMessage) (any, error) {
	p, err := t.parse(params)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, p)
}

func (t *typedTool[P]) parse(params json.RawMessage) (P, error) {
	var p P
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		return p, &ParamError{Msg: "Parameters must be an object"}
	}
	for _, key := range t.schema.Required {
		v, ok := fields[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return p, missingParam(key)
		}
	}
	if err := json.Unmarshal(params, &p); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return p, invalidParam(te.Field)
		}
		return p, &ParamError{Msg: "Invalid parameters"}
	}
	if t.validate != nil {
		if err := t.validate(&p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// schemaFor reflects a parameter struct. Fields without omitempty are required.
func schemaFor[P any]() *jsonschema.Schema {
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true, ExpandedStruct: true}
	var v P
	s := r.Reflect(v)
	s.Version = ""
	return s
}

// Registry maps tool names to tools. It is built once and never modified.
type Registry struct {
	order []Kind
	tools map[Kind]Tool
}

// Deps are the downstream integrations tools may be bound to.
type Deps struct {
	DB     Opener
	Search Searcher
	SAM    OpportunitySearcher
}

// NewRegistry builds the tools named by kinds, in order.
func NewRegistry(kinds []Kind, deps Deps) (*Registry, error) {
	r := &Registry{tools: make(map[Kind]Tool, len(kinds))}
	for _, k := range kinds {
		if _, dup := r.tools[k]; dup {
			return nil, fmt.Errorf("tool %s listed twice", k)
		}
		var t Tool
		switch k {
		case KindMySQLQuery:
			if deps.DB == nil {
				return nil, fmt.Errorf("tool %s needs a database", k)
			}
			t = newMySQLQueryTool(deps.DB)
		case KindWebSearch:
			if deps.Search == nil {
				return nil, fmt.Errorf("tool %s needs a search client", k)
			}
			t = newWebSearchTool(deps.Search)
		case KindSAMSearch:
			if deps.SAM == nil {
				return nil, fmt.Errorf("tool %s needs a SAM.gov client", k)
			}
			t = newSAMSearchTool(deps.SAM)
		default:
			return nil, fmt.Errorf("no handler for tool %q", k)
		}
		r.order = append(r.order, k)
		r.tools[k] = t
	}
	return r, nil
}

// Lookup finds a tool by its wire name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[Kind(name)]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, string(k))
	}
	return out
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.tools[k])
	}
	return out
}
