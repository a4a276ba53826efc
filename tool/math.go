package tool

import (
	"context"
	"fmt"
)

func numberArgs() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number", "description": "First operand"},
			"b": map[string]any{"type": "number", "description": "Second operand"},
		},
		"required": []string{"a", "b"},
	}
}

func operand(args map[string]any, key string) (float64, error) {
	switch v := args[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %q is not a number", key)
	}
}

// NewAddTool returns a tool adding two numbers.
func NewAddTool(opts ...FunctionToolOption) *FunctionTool {
	return NewFunctionTool(
		"add",
		"Add two numbers and return the sum",
		numberArgs(),
		func(_ context.Context, args map[string]any) (any, error) {
			a, err := operand(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := operand(args, "b")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("%g", a+b), nil
		},
		opts...,
	)
}

// NewMultiplyTool returns a tool multiplying two numbers.
func NewMultiplyTool(opts ...FunctionToolOption) *FunctionTool {
	return NewFunctionTool(
		"multiply",
		"Multiply two numbers and return the product",
		numberArgs(),
		func(_ context.Context, args map[string]any) (any, error) {
			a, err := operand(args, "a")
			if err != nil {
				return nil, err
			}
			b, err := operand(args, "b")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("%g", a*b), nil
		},
		opts...,
	)
}
