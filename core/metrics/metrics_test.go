package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	dispatches  int
	accepts     int
	completions int
	err         error
}

func (s *recordingSink) RecordDispatch(DispatchRecord) error {
	s.dispatches++
	return s.err
}

func (s *recordingSink) RecordAccept(AcceptRecord) error {
	s.accepts++
	return s.err
}

func (s *recordingSink) RecordCompletion(CompletionRecord) error {
	s.completions++
	return s.err
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := NewMultiSink(a, b)

	require.NoError(t, m.RecordDispatch(DispatchRecord{}))
	require.NoError(t, m.RecordAccept(AcceptRecord{}))
	require.NoError(t, m.RecordCompletion(CompletionRecord{}))

	for _, s := range []*recordingSink{a, b} {
		assert.Equal(t, 1, s.dispatches)
		assert.Equal(t, 1, s.accepts)
		assert.Equal(t, 1, s.completions)
	}
}

func TestMultiSinkReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := &recordingSink{err: boom}
	b := &recordingSink{}
	m := NewMultiSink(a, b)

	assert.ErrorIs(t, m.RecordDispatch(DispatchRecord{}), boom)
	assert.Equal(t, 0, b.dispatches, "short-circuits after the first error")
}

func TestNopSink(t *testing.T) {
	var s NopSink
	assert.NoError(t, s.RecordDispatch(DispatchRecord{}))
	assert.NoError(t, s.RecordAccept(AcceptRecord{}))
	assert.NoError(t, s.RecordCompletion(CompletionRecord{}))
}
