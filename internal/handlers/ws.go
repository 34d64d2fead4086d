// internal/handlers/ws.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno/internal/auth"
	"github.com/cardtable/uno/internal/protocol"
	"github.com/cardtable/uno/internal/room"
)

// outQueueSize bounds each connection's outbound queue. A full queue drops
// frames rather than stalling the room's broadcast loop; the periodic state
// resync repairs any gap a slow client accumulates.
const outQueueSize = 256

const writeTimeout = 3 * time.Second

var nextConnID uint64

// connSink adapts one connection's outbound queue to the room.Sink
// interface. Send is non-blocking by construction.
type connSink struct {
	out chan []byte
}

func (s *connSink) Send(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// GameWSHandler upgrades the HTTP connection to WebSocket and runs the
// connection's read loop. The first message must be JoinGame; everything
// after is forwarded to the joined room's mailbox. Malformed input gets a
// ServerError reply and the connection stays open. sessions may be nil, in
// which case presented session tokens are ignored.
func GameWSHandler(logger *logrus.Logger, reg *room.Registry, sessions *auth.Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"uno"},
			OriginPatterns: []string{"*"}, // open origin until a deployment origin is pinned
		})
		if err != nil {
			logger.Warnf("websocket accept error from %s: %v", r.RemoteAddr, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler exit")

		if c.Subprotocol() != "uno" {
			c.Close(websocket.StatusPolicyViolation, "client must use the 'uno' subprotocol")
			return
		}

		connID := room.ConnID(atomic.AddUint64(&nextConnID, 1))
		logger.WithFields(logrus.Fields{
			"conn": connID, "remote": r.RemoteAddr,
		}).Info("websocket connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sink := &connSink{out: make(chan []byte, outQueueSize)}
		go writePump(ctx, c, sink, logger, connID)

		readLoop(ctx, c, reg, sessions, connID, sink, logger)
		logger.WithField("conn", connID).Info("websocket disconnected")
	}
}

// readLoop consumes framed messages until the connection drops. On exit the
// departure is appended to the room mailbox like any other command.
func readLoop(ctx context.Context, c *websocket.Conn, reg *room.Registry, sessions *auth.Sessions, connID room.ConnID, sink *connSink, logger *logrus.Logger) {
	var joined *room.Room
	defer func() {
		if joined != nil {
			leaveRoom(joined, connID, logger)
		}
	}()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				strings.Contains(err.Error(), "context canceled") {
				logger.Debugf("conn %d: closed: %v", connID, err)
			} else {
				logger.Warnf("conn %d: read error: %v", connID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("conn %d: ignoring non-text message", connID)
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			sink.Send(protocol.EncodeServerError(err.Error()))
			continue
		}

		switch {
		case joined == nil && env.Type == protocol.TypeJoinGame:
			var msg protocol.JoinGame
			if err := env.DecodeData(&msg); err != nil {
				sink.Send(protocol.EncodeServerError(err.Error()))
				continue
			}
			if msg.RoomID == "" || msg.Name == "" {
				sink.Send(protocol.EncodeServerError("JoinGame requires room_id and name"))
				continue
			}
			if msg.Session != "" && sessions != nil {
				tokenRoom, pid, err := sessions.VerifyToken(msg.Session)
				if err != nil {
					sink.Send(protocol.EncodeServerError("Invalid session token"))
					continue
				}
				if tokenRoom != msg.RoomID {
					sink.Send(protocol.EncodeServerError("Session does not match room"))
					continue
				}
				logger.WithFields(logrus.Fields{
					"conn": connID, "room": msg.RoomID, "pid": pid,
				}).Debug("session token presented")
			}
			rm, err := reg.Join(msg.RoomID, connID, msg.Name, sink)
			if err != nil {
				logger.Warnf("conn %d: join room %q failed: %v", connID, msg.RoomID, err)
				sink.Send(protocol.EncodeServerError("room is busy, try again"))
				continue
			}
			joined = rm
		case joined == nil:
			sink.Send(protocol.EncodeServerError("First message must be JoinGame {room_id,name}"))
		case env.Type == protocol.TypeJoinGame:
			sink.Send(protocol.EncodeServerError("Already joined"))
		default:
			if err := joined.Deliver(connID, env); err != nil {
				sink.Send(protocol.EncodeServerError("room unavailable"))
			}
		}
	}
}

// leaveRoom posts the departure, retrying briefly if the mailbox is
// saturated so the room's roster does not leak a dead connection.
func leaveRoom(r *room.Room, connID room.ConnID, logger *logrus.Logger) {
	for attempt := 0; attempt < 3; attempt++ {
		err := r.Leave(connID)
		if err == nil || errors.Is(err, room.ErrRoomClosed) {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	logger.Warnf("conn %d: failed to post leave to room %s", connID, r.ID())
}

// writePump drains the connection's outbound queue onto the socket. A write
// failure ends the pump; the read side notices the closure independently.
func writePump(ctx context.Context, c *websocket.Conn, sink *connSink, logger *logrus.Logger, connID room.ConnID) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-sink.out:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(writeCtx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				logger.Debugf("conn %d: write error: %v", connID, err)
				return
			}
		}
	}
}
