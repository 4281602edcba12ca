package connector

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/geo-audit/internal/resilience"
)

type mockSurface struct {
	mock.Mock
	name      string
	webSearch bool
}

func newMockSurface(webSearch bool) *mockSurface {
	return &mockSurface{name: "mock", webSearch: webSearch}
}

func (m *mockSurface) Name() string { return m.name }

func (m *mockSurface) SupportsWebSearch() bool { return m.webSearch }

func (m *mockSurface) Complete(ctx context.Context, req Request) (*Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Completion), args.Error(1)
}

// withSearch matches requests by their WebSearch flag.
func withSearch(on bool) any {
	return mock.MatchedBy(func(r Request) bool { return r.WebSearch == on })
}

func testOptions() Options {
	return Options{
		Model:   "test-model",
		Timeout: 5 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
	}
}
