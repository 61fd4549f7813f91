package events

import (
	"testing"

	"github.com/stretchr/testify/require"

	"rewardvault/core/types"
)

type testEvent struct{ kind string }

func (e testEvent) EventType() string { return e.kind }

func (e testEvent) Event() *types.Event {
	return &types.Event{Type: e.kind, Attributes: map[string]string{"k": "v"}}
}

func TestRecorderKeepsOrder(t *testing.T) {
	rec := &Recorder{}
	rec.Emit(testEvent{kind: "a"})
	rec.Emit(nil)
	rec.Emit(testEvent{kind: "b"})
	require.Equal(t, []string{"a", "b"}, rec.Types())

	rec.Reset()
	require.Empty(t, rec.Events())
}

func TestMultiFansOut(t *testing.T) {
	first, second := &Recorder{}, &Recorder{}
	Multi{first, nil, second, NoopEmitter{}, LogEmitter{}}.Emit(testEvent{kind: "x"})
	require.Equal(t, []string{"x"}, first.Types())
	require.Equal(t, []string{"x"}, second.Types())
}
