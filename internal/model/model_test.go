package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlag(t *testing.T) {
	for _, f := range Flags {
		got, ok := ParseFlag(string(f))
		assert.True(t, ok, f)
		assert.Equal(t, f, got)
	}

	_, ok := ParseFlag("NO_SOURCES")
	assert.False(t, ok)
	_, ok = ParseFlag("")
	assert.False(t, ok)
}

func TestFallbackAnswer(t *testing.T) {
	a := FallbackAnswer()
	assert.Empty(t, a.OrderedEntities)
	assert.NotNil(t, a.OrderedEntities)
	assert.Empty(t, a.Citations)
	assert.Equal(t, FallbackSummary, a.AnswerSummary)
	assert.True(t, a.HasFlag(FlagNoSources))
	assert.False(t, a.HasFlag(FlagPossibleHallucination))

	// Each call returns an independent value.
	a.Notes.Flags[0] = FlagOutdatedInfo
	assert.True(t, FallbackAnswer().HasFlag(FlagNoSources))
}

func TestParseProminence(t *testing.T) {
	tests := []struct {
		in   string
		want Prominence
		ok   bool
	}{
		{"primary", ProminencePrimary, true},
		{"secondary", ProminenceSecondary, true},
		{"minor", ProminenceMinor, true},
		{"major", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseProminence(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryTypeValid(t *testing.T) {
	assert.True(t, QueryLocal.Valid())
	assert.True(t, QueryVoiceSearch.Valid())
	assert.False(t, QueryType("navigational").Valid())
	assert.False(t, QueryType("").Valid())
}

func TestEnumSchemas(t *testing.T) {
	assert.Len(t, Flag("").JSONSchema().Enum, len(Flags))
	assert.Len(t, QueryType("").JSONSchema().Enum, 6)
	assert.Equal(t, []any{"primary", "secondary", "minor"}, Prominence("").JSONSchema().Enum)
}
