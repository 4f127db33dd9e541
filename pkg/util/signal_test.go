package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalsEmitInOrder(t *testing.T) {
	s := NewSignals()
	var got []string
	s.Connect("crime.reported", func(sender any, params ...any) {
		got = append(got, "first:"+sender.(string))
	})
	s.Connect("crime.reported", func(sender any, params ...any) {
		got = append(got, "second:"+params[0].(string))
	})
	s.Connect("other", func(sender any, params ...any) {
		got = append(got, "other")
	})

	s.Emit("crime.reported", "a", "b")
	assert.Equal(t, []string{"first:a", "second:b"}, got)

	s.Emit("nobody.listens", nil)
	assert.Len(t, got, 2)
}

func TestSignalsClear(t *testing.T) {
	s := NewSignals()
	n := 0
	inc := func(sender any, params ...any) { n++ }
	s.Connect("a", inc)
	s.Connect("b", inc)

	s.Clear("a")
	s.Emit("a", nil)
	s.Emit("b", nil)
	assert.Equal(t, 1, n)

	s.Clear()
	s.Emit("b", nil)
	assert.Equal(t, 1, n)
}

func TestHandlerMayConnectDuringEmit(t *testing.T) {
	s := NewSignals()
	calls := 0
	s.Connect("x", func(sender any, params ...any) {
		calls++
		s.Connect("x", func(sender any, params ...any) { calls++ })
	})
	s.Emit("x", nil)
	assert.Equal(t, 1, calls)
	s.Emit("x", nil)
	assert.Equal(t, 3, calls)
}
