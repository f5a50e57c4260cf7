package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	plain := New(KindTableNotPresent, "no such table")
	assert.Equal(t, "[table_not_present] no such table", plain.Error())

	wrapped := Wrap(KindSerialization, "read snapshot", errors.New("eof"))
	assert.Equal(t, "[serialization] read snapshot: eof", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("refused")
	err := Wrap(KindConnectionFailed, "connect", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestKindOf_TraversesChain(t *testing.T) {
	inner := New(KindPoolExhausted, "busy")
	outer := fmt.Errorf("selecting rows: %w", inner)

	assert.Equal(t, KindPoolExhausted, KindOf(outer))
	assert.True(t, IsPoolExhausted(outer))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("anything")))
	assert.False(t, IsQueryFailed(errors.New("anything")))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind Kind
		pred func(error) bool
	}{
		{KindConnectionFailed, IsConnectionFailed},
		{KindPoolExhausted, IsPoolExhausted},
		{KindQueryFailed, IsQueryFailed},
		{KindTimeout, IsTimeout},
		{KindTableNotPresent, IsTableNotPresent},
		{KindColumnsNotPresent, IsColumnsNotPresent},
		{KindInsertEmptyData, IsInsertEmptyData},
		{KindInsertFormat, IsInsertFormat},
		{KindRowParse, IsRowParse},
		{KindDriftDetected, IsDriftDetected},
		{KindSerialization, IsSerialization},
		{KindInvalidInput, IsInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			require.True(t, tt.pred(New(tt.kind, "x")))
			require.False(t, tt.pred(New(KindUnknown, "x")))
		})
	}
}
