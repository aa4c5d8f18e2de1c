package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentloop/internal/util"
	"github.com/mitchellh/mapstructure"
)

// NewTypedTool exposes a function taking a typed argument struct. The schema is
// derived from T (json and description tags) and validated arguments are
// decoded into T before fn is called. If T implements interface{ Validate() error }
// it is checked after decoding.
//
// Example:
//
//	type SearchArgs struct {
//	  Query string `json:"query" description:"Search terms"`
//	}
//
//	search := tool.NewTypedTool("search", "Search the web", func(ctx context.Context, args SearchArgs) (any, error) {
//	  return lookup(ctx, args.Query)
//	})
func NewTypedTool[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) *FunctionTool {
	var zero T
	return NewFunctionTool(name, description, util.CreateSchema(zero), func(ctx context.Context, raw map[string]any) (any, error) {
		args, err := DecodeArgs[T](raw)
		if err != nil {
			return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, cause: err}
		}
		if v, ok := any(args).(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, cause: err}
			}
		}
		return fn(ctx, args)
	})
}

// DecodeArgs decodes a tool argument map into T using json struct tags.
// Numbers are converted between float64 and integer kinds as needed.
func DecodeArgs[T any](raw map[string]any) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(raw); err != nil {
		return out, fmt.Errorf("invalid arguments: %w", err)
	}
	return out, nil
}
