// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardtable/uno/internal/auth"
	"github.com/cardtable/uno/internal/protocol"
	"github.com/cardtable/uno/internal/room"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// dialTestServer spins up the handler and one client connection against it.
func dialTestServer(t *testing.T, sessions *auth.Sessions) (context.Context, *websocket.Conn) {
	t.Helper()
	logger := quietLogger()
	reg := room.NewRegistry(room.Options{
		Logger:       logger,
		IdleTimeout:  time.Hour,
		ReapInterval: time.Hour,
	})
	srv := httptest.NewServer(GameWSHandler(logger, reg, sessions))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	c, _, err := websocket.Dial(ctx, srv.URL, &websocket.DialOptions{
		Subprotocols: []string{"uno"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return ctx, c
}

func sendMsg(ctx context.Context, t *testing.T, c *websocket.Conn, typ string, payload interface{}) {
	t.Helper()
	frame, err := protocol.Encode(typ, payload)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, frame))
}

// readUntil consumes frames until one of the wanted type arrives; rooms
// interleave Events and state resyncs with the replies under test.
func readUntil(ctx context.Context, t *testing.T, c *websocket.Conn, typ string) protocol.Envelope {
	t.Helper()
	for {
		_, data, err := c.Read(ctx)
		require.NoError(t, err)
		env, err := protocol.Decode(data)
		require.NoError(t, err)
		if env.Type == typ {
			return env
		}
	}
}

func readError(ctx context.Context, t *testing.T, c *websocket.Conn) string {
	t.Helper()
	var serr protocol.ServerError
	require.NoError(t, readUntil(ctx, t, c, protocol.TypeServerError).DecodeData(&serr))
	return serr.Message
}

func TestFirstMessageMustBeJoinGame(t *testing.T) {
	ctx, c := dialTestServer(t, nil)

	// Any game message before joining is rejected, the connection survives.
	sendMsg(ctx, t, c, protocol.TypePassTurn, protocol.PassTurn{PlayerID: 0})
	assert.Equal(t, "First message must be JoinGame {room_id,name}", readError(ctx, t, c))

	// Malformed frames get an error reply, not a disconnect.
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte(`{nope`)))
	assert.Contains(t, readError(ctx, t, c), "bad json")

	// An incomplete join is rejected and the gate stays up.
	sendMsg(ctx, t, c, protocol.TypeJoinGame, protocol.JoinGame{Name: "alice"})
	assert.Equal(t, "JoinGame requires room_id and name", readError(ctx, t, c))

	// A proper join finally lands and is answered with Welcome.
	sendMsg(ctx, t, c, protocol.TypeJoinGame, protocol.JoinGame{RoomID: "gate", Name: "alice"})
	var welcome protocol.Welcome
	require.NoError(t, readUntil(ctx, t, c, protocol.TypeWelcome).DecodeData(&welcome))
	assert.Equal(t, 0, welcome.PlayerID)
	assert.NotEmpty(t, welcome.SessionID)

	// Joining twice on one connection is refused.
	sendMsg(ctx, t, c, protocol.TypeJoinGame, protocol.JoinGame{RoomID: "gate", Name: "alice"})
	assert.Equal(t, "Already joined", readError(ctx, t, c))
}

func TestJoinGameSessionValidation(t *testing.T) {
	sessions := auth.NewSessions("handler-test-secret")
	ctx, c := dialTestServer(t, sessions)

	sendMsg(ctx, t, c, protocol.TypeJoinGame, protocol.JoinGame{
		RoomID: "gate", Name: "alice", Session: "not.a.token",
	})
	assert.Equal(t, "Invalid session token", readError(ctx, t, c))

	foreign, err := sessions.CreateToken("other-room", 0)
	require.NoError(t, err)
	sendMsg(ctx, t, c, protocol.TypeJoinGame, protocol.JoinGame{
		RoomID: "gate", Name: "alice", Session: foreign,
	})
	assert.Equal(t, "Session does not match room", readError(ctx, t, c))

	token, err := sessions.CreateToken("gate", 0)
	require.NoError(t, err)
	sendMsg(ctx, t, c, protocol.TypeJoinGame, protocol.JoinGame{
		RoomID: "gate", Name: "alice", Session: token,
	})
	var welcome protocol.Welcome
	require.NoError(t, readUntil(ctx, t, c, protocol.TypeWelcome).DecodeData(&welcome))
	assert.Equal(t, 0, welcome.PlayerID)
}

func TestConnSinkDropsWhenQueueFull(t *testing.T) {
	sink := &connSink{out: make(chan []byte, 2)}

	assert.True(t, sink.Send([]byte("a")))
	assert.True(t, sink.Send([]byte("b")))
	assert.False(t, sink.Send([]byte("c")), "a saturated queue drops instead of blocking")

	assert.Equal(t, []byte("a"), <-sink.out)
	assert.True(t, sink.Send([]byte("d")), "draining frees a slot")
}
