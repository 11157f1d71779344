package invocation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/pushchannel/internal/model"
)

func invocationMsg(payload string) model.Message {
	return model.Message{Kind: model.KindClientInvocation, Payload: payload}
}

func TestRegister_FirstWins(t *testing.T) {
	r := NewRegistry()

	var calls []string
	for i, name := range []string{"first", "second", "third"} {
		name := name
		stored := r.Register("Send", func(args []any) { calls = append(calls, name) })
		assert.Equal(t, i == 0, stored)
	}

	for i := 0; i < 3; i++ {
		r.Dispatch(invocationMsg(`{"methodName":"Send","arguments":[]}`))
	}

	assert.Equal(t, []string{"first", "first", "first"}, calls)
	assert.Equal(t, 1, r.Len())
}

func TestRegister_NilHandler(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Register("Send", nil))
	assert.Zero(t, r.Len())
}

func TestDispatch_InvokesWithArguments(t *testing.T) {
	r := NewRegistry()

	var got [][]any
	r.Register("Send", func(args []any) { got = append(got, args) })

	r.Dispatch(invocationMsg(`{"methodName":"Send","arguments":["hi"]}`))

	require.Len(t, got, 1)
	assert.Equal(t, []any{"hi"}, got[0])
	assert.Equal(t, int64(1), r.Stats().Invoked)
}

func TestDispatch_UnregisteredMethodIsNoop(t *testing.T) {
	r := NewRegistry()

	called := false
	r.Register("Send", func(args []any) { called = true })

	r.Dispatch(invocationMsg(`{"methodName":"Missing","arguments":[1]}`))

	assert.False(t, called)
	stats := r.Stats()
	assert.Equal(t, int64(0), stats.Invoked)
	assert.Equal(t, int64(1), stats.Unhandled)
}

func TestDispatch_MalformedPayloadDropped(t *testing.T) {
	r := NewRegistry()

	called := false
	r.Register("Send", func(args []any) { called = true })

	for _, payload := range []string{`not json`, `{"methodName":`, `{"arguments":["x"]}`, ``} {
		r.Dispatch(invocationMsg(payload))
	}

	assert.False(t, called)
	assert.Equal(t, int64(4), r.Stats().DecodeErrors)
}

func TestDispatch_TextAndEventsGoToSink(t *testing.T) {
	var sunk []model.Message
	r := NewRegistry(WithSink(func(msg model.Message) { sunk = append(sunk, msg) }))

	called := false
	r.Register("hello", func(args []any) { called = true })

	r.Dispatch(model.Message{Kind: model.KindText, Payload: "hello"})
	r.Dispatch(model.Message{Kind: model.KindConnectionEvent, Payload: "connected"})

	assert.False(t, called)
	require.Len(t, sunk, 2)
	assert.Equal(t, "hello", sunk[0].Payload)
	assert.Equal(t, model.KindConnectionEvent, sunk[1].Kind)
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	r := NewRegistry()
	r.Register("Boom", func(args []any) { panic("boom") })

	assert.NotPanics(t, func() {
		r.Dispatch(invocationMsg(`{"methodName":"Boom","arguments":[]}`))
	})
	assert.Equal(t, int64(1), r.Stats().Panics)
}

func TestRegistry_ConcurrentRegisterAndDispatch(t *testing.T) {
	r := NewRegistry()

	var mu sync.Mutex
	winners := make(map[int]int)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.Register("Send", func(args []any) {
				mu.Lock()
				winners[id]++
				mu.Unlock()
			})
			r.Dispatch(invocationMsg(`{"methodName":"Send","arguments":[]}`))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, winners, 1, "only one handler may ever fire")
	for _, n := range winners {
		assert.Equal(t, 20, n)
	}
}
