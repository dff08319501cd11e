package llm

import (
	"context"
	"sync"
)

// Mock is a scripted Invoker for tests and for blocks carrying the mock
// directive. Responses are returned in order; when the script runs out the
// last entry repeats.
type Mock struct {
	mu    sync.Mutex
	seq   []*Response
	calls []Request
}

// NewMock creates a Mock that replays the given responses.
func NewMock(responses ...*Response) *Mock {
	if len(responses) == 0 {
		responses = []*Response{{Text: "mock response"}}
	}
	return &Mock{seq: responses}
}

// Invoke records the request and replays the next scripted response.
func (m *Mock) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	i := len(m.calls) - 1
	if i >= len(m.seq) {
		i = len(m.seq) - 1
	}
	return m.seq[i], nil
}

// Calls returns every request seen so far.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}
