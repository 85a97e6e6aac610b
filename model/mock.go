package model

import (
	"context"
	"fmt"
	"sync"
)

// Reply is one scripted MockModel answer.
type Reply struct {
	Text string
	Err  error
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Replies are scripted per schema name ("" for free-text requests) and
// consumed in order; the last reply of a script repeats once exhausted.
type MockModel struct {
	info Info

	mu       sync.Mutex
	scripts  map[string][]Reply
	requests []Request
	handler  func(Request) (string, error)
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:    Info{Name: name, Provider: "mock", NativeSchema: true},
		scripts: make(map[string][]Reply),
	}
}

// Script appends replies for requests carrying the named schema.
func (m *MockModel) Script(schema string, replies ...Reply) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[schema] = append(m.scripts[schema], replies...)
	return m
}

// ScriptText is a shorthand for scripting successful replies.
func (m *MockModel) ScriptText(schema string, texts ...string) *MockModel {
	replies := make([]Reply, len(texts))
	for i, t := range texts {
		replies[i] = Reply{Text: t}
	}
	return m.Script(schema, replies...)
}

// SetHandler installs a fallback used when no script matches.
func (m *MockModel) SetHandler(fn func(Request) (string, error)) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
	return m
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Calls returns how many requests used the named schema.
func (m *MockModel) Calls(schema string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if schemaName(r) == schema {
			n++
		}
	}
	return n
}

func schemaName(r Request) string {
	if r.Schema == nil {
		return ""
	}
	return r.Schema.Name
}

func (m *MockModel) next(req Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	key := schemaName(req)
	script := m.scripts[key]
	handler := m.handler
	if len(script) > 0 {
		r := script[0]
		if len(script) > 1 {
			m.scripts[key] = script[1:]
		}
		m.mu.Unlock()
		return r.Text, r.Err
	}
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	return fmt.Sprintf("Mock response to: %s", req.History.LastUser()), nil
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if err := ctx.Err(); err != nil {
			errCh <- err
			return
		}
		text, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- Response{Text: text, FinishReason: "stop"}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
