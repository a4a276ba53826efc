package core

import "context"

// Agent is the single capability interface the supervisor delegates to. A
// specialist receives the sub-query plus the accumulated conversation context
// and returns its result text. Implementations must respect ctx cancellation
// on any blocking work (model calls, retrieval, storage).
type Agent interface {
	Name() string
	Description() string
	Invoke(ctx context.Context, query, chatContext string) (string, error)
}
