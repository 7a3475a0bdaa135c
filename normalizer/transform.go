package normalizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Transformer runs a Program against a raw document. An empty result means the
// document carries no actionable change.
type Transformer interface {
	Transform(ctx context.Context, document []byte, program Program) ([]byte, error)
}

type TransformerFunc func(ctx context.Context, document []byte, program Program) ([]byte, error)

func (f TransformerFunc) Transform(ctx context.Context, document []byte, program Program) ([]byte, error) {
	return f(ctx, document, program)
}

// GJSONTransformer evaluates programs with gjson path lookups and builds the
// output with sjson.
type GJSONTransformer struct{}

func (GJSONTransformer) Transform(ctx context.Context, document []byte, program Program) ([]byte, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if !gjson.ValidBytes(document) {
		return nil, nil
	}
	root := gjson.ParseBytes(document)
	if !root.IsObject() {
		return nil, nil
	}

	entries := root.Get(program.entriesPath()).Array()
	for _, branch := range program.Branches {
		for _, entry := range entries {
			notification := entry.Get(program.notificationPath())
			for _, change := range entry.Get(program.changesPath()).Array() {
				value := change.Get(program.valuePath())
				items := value.Get(branch.Items)
				if !present(items) {
					continue
				}
				item := items
				if items.IsArray() {
					item = items.Get("0")
				}
				if !present(item) {
					continue
				}
				sc := scope{
					"entry":        entry,
					"notification": notification,
					"value":        value,
					"item":         item,
				}
				sc.bind(branch.Bindings)
				if !sc.hasAll(branch.Require) {
					continue
				}
				out, ok, err := evalBranch(branch, sc)
				if err != nil {
					return nil, err
				}
				if ok {
					return out, nil
				}
			}
		}
	}
	return nil, nil
}

func evalBranch(branch Branch, sc scope) ([]byte, bool, error) {
	for _, rule := range branch.Rules {
		if !sc.matches(rule.When) {
			continue
		}
		out, err := emit(rule, sc)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	}
	if branch.Fallback == nil {
		return nil, false, nil
	}
	out, err := emit(*branch.Fallback, sc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func emit(rule Rule, sc scope) ([]byte, error) {
	local := sc.clone()
	local.bind(rule.Bindings)
	out := []byte(`{}`)
	var err error
	for _, mapping := range rule.Emit {
		out, err = apply(out, mapping, local)
		if err != nil {
			return nil, fmt.Errorf("normalizer: rule %q target %q: %w", rule.Name, mapping.Target, err)
		}
	}
	return out, nil
}

func apply(out []byte, mapping Mapping, sc scope) ([]byte, error) {
	if mapping.Const != nil {
		return sjson.SetBytes(out, mapping.Target, mapping.Const)
	}
	for _, path := range mapping.From {
		result := sc.resolve(path)
		if !present(result) {
			continue
		}
		switch {
		case mapping.Raw:
			return sjson.SetRawBytes(out, mapping.Target, []byte(result.Raw))
		case mapping.Number:
			return sjson.SetBytes(out, mapping.Target, result.Int())
		default:
			return sjson.SetBytes(out, mapping.Target, result.Value())
		}
	}
	if mapping.Default != nil {
		return sjson.SetBytes(out, mapping.Target, mapping.Default)
	}
	return out, nil
}

// scope maps binding names to resolved values. Paths address a binding by
// their first segment.
type scope map[string]gjson.Result

func (s scope) resolve(path string) gjson.Result {
	name, rest, _ := strings.Cut(strings.TrimSpace(path), ".")
	base, ok := s[name]
	if !ok {
		return gjson.Result{}
	}
	if rest == "" {
		return base
	}
	return base.Get(rest)
}

func (s scope) bind(bindings []Binding) {
	for _, binding := range bindings {
		s[binding.Name] = s.resolve(binding.Path)
	}
}

func (s scope) clone() scope {
	out := make(scope, len(s))
	for key, value := range s {
		out[key] = value
	}
	return out
}

func (s scope) hasAll(paths []string) bool {
	for _, path := range paths {
		result := s.resolve(path)
		if !present(result) || strings.TrimSpace(result.String()) == "" {
			return false
		}
	}
	return true
}

func (s scope) matches(conditions []Condition) bool {
	for _, condition := range conditions {
		result := s.resolve(condition.Path)
		if condition.Missing {
			if present(result) {
				return false
			}
			continue
		}
		if !present(result) {
			return false
		}
		if len(condition.Equals) > 0 && !containsString(condition.Equals, result.String()) {
			return false
		}
	}
	return true
}

func present(result gjson.Result) bool {
	return result.Exists() && result.Type != gjson.Null
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

var _ Transformer = GJSONTransformer{}
