package domain

import "context"

// Tool is the interface for functions the LLM may call. Execute returns a
// JSON-serializable value; errors are classified and reported by the executor,
// never surfaced to the end user as exceptions.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (any, error)
}
