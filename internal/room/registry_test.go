// internal/room/registry_test.go
package room

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardtable/uno/internal/protocol"
)

func TestGetOrCreateConcurrent(t *testing.T) {
	reg := NewRegistry(testOptions())

	const goroutines = 16
	rooms := make([]*Room, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rooms[i] = reg.GetOrCreate("shared")
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, reg.Len())
	for i := 1; i < goroutines; i++ {
		assert.Same(t, rooms[0], rooms[i])
	}
}

func TestMailboxAppliesCommandsInOrder(t *testing.T) {
	reg := NewRegistry(testOptions())
	a, b := &mockSink{}, &mockSink{}

	_, err := reg.Join("fifo", 1, "alice", a)
	require.NoError(t, err)
	r, err := reg.Join("fifo", 2, "bob", b)
	require.NoError(t, err)

	// Enqueue back to back: the start must be applied before the pass for
	// the pass to be legal.
	env, err := protocol.Encode(protocol.TypeStartGame, protocol.StartGame{PlayerID: 0})
	require.NoError(t, err)
	start, err := protocol.Decode(env)
	require.NoError(t, err)
	require.NoError(t, r.Deliver(1, start))

	env, err = protocol.Encode(protocol.TypePassTurn, protocol.PassTurn{PlayerID: 0})
	require.NoError(t, err)
	pass, err := protocol.Decode(env)
	require.NoError(t, err)
	require.NoError(t, r.Deliver(1, pass))

	require.Eventually(t, func() bool {
		envs := a.byType(protocol.TypeSharedState)
		if len(envs) == 0 {
			return false
		}
		var shared protocol.SharedState
		if err := envs[len(envs)-1].DecodeData(&shared); err != nil {
			return false
		}
		return shared.CurrentPlayer == 1
	}, 2*time.Second, 10*time.Millisecond, "the pass should land after the start")
	assert.Zero(t, a.count(protocol.TypeServerError))
}

func TestJoinOrderAssignsSlots(t *testing.T) {
	reg := NewRegistry(testOptions())
	a, b := &mockSink{}, &mockSink{}

	_, err := reg.Join("slots", 1, "alice", a)
	require.NoError(t, err)
	_, err = reg.Join("slots", 2, "bob", b)
	require.NoError(t, err)

	welcome := func(s *mockSink, want int) func() bool {
		return func() bool {
			envs := s.byType(protocol.TypeWelcome)
			if len(envs) == 0 {
				return false
			}
			var w protocol.Welcome
			if err := envs[len(envs)-1].DecodeData(&w); err != nil {
				return false
			}
			return w.PlayerID == want
		}
	}
	require.Eventually(t, welcome(a, 0), 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, welcome(b, 1), 2*time.Second, 10*time.Millisecond)
}

func TestIdleRoomIsReaped(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 20 * time.Millisecond
	opts.ReapInterval = 5 * time.Millisecond
	reg := NewRegistry(opts)

	r := reg.GetOrCreate("idle")
	require.Equal(t, 1, reg.Len())

	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	// The retired instance refuses everything; the registry hands out a
	// fresh room for the same id.
	err := r.Join(1, "alice", &mockSink{})
	assert.ErrorIs(t, err, ErrRoomClosed)

	fresh, err := reg.Join("idle", 1, "alice", &mockSink{})
	require.NoError(t, err)
	assert.NotSame(t, r, fresh)
}

func TestOccupiedRoomIsNotReaped(t *testing.T) {
	opts := testOptions()
	opts.IdleTimeout = 10 * time.Millisecond
	opts.ReapInterval = 5 * time.Millisecond
	reg := NewRegistry(opts)

	_, err := reg.Join("busy", 1, "alice", &mockSink{})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, reg.Len(), "a room with members never idles out")
}
