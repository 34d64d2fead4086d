// internal/room/room.go
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno/internal/game"
	"github.com/cardtable/uno/internal/protocol"
)

// ConnID identifies one live connection for the lifetime of the process.
type ConnID uint64

// Sink delivers one encoded server frame to a single connection. Send must
// never block the room loop: implementations drop the frame when their
// outbound queue is full and report false once the connection is gone.
type Sink interface {
	Send(frame []byte) bool
}

var (
	// ErrRoomClosed means the room retired between handle lookup and send;
	// callers should re-resolve the room id for a fresh instance.
	ErrRoomClosed = errors.New("room closed")
	// ErrMailboxFull means the room's command queue is saturated.
	ErrMailboxFull = errors.New("room mailbox full")
)

const mailboxSize = 256

// command is the room mailbox message. The room goroutine is the only
// consumer, which is the sole mutual-exclusion mechanism over the engine.
type command interface{ isCommand() }

type joinCmd struct {
	connID ConnID
	name   string
	sink   Sink
}

type leaveCmd struct {
	connID ConnID
}

type gameCmd struct {
	connID ConnID
	env    protocol.Envelope
}

func (joinCmd) isCommand()  {}
func (leaveCmd) isCommand() {}
func (gameCmd) isCommand()  {}

// member is one connected participant: its connection identity, the player
// slot it claims, and the outbound sink the room fans out to. The room
// never blocks on a member's sink.
type member struct {
	connID ConnID
	pid    int
	name   string
	sink   Sink
}

// Options configures rooms spawned by a registry.
type Options struct {
	Logger       *logrus.Logger
	Sinks        []game.Sink
	IdleTimeout  time.Duration
	ReapInterval time.Duration

	// SessionFn mints the session_id carried in Welcome messages. Optional;
	// the fallback is a plain "room-pid" identifier.
	SessionFn func(roomID string, playerID int) (string, error)
}

// Room owns exactly one rule engine and serializes every mutation through
// its mailbox. All fields below closeMu are touched only by the room
// goroutine.
type Room struct {
	id       string
	registry *Registry
	opts     Options

	cmds    chan command
	closeMu sync.RWMutex
	closed  bool

	game       *game.Game
	members    []*member
	lastActive time.Time
}

func newRoom(id string, registry *Registry, opts Options) *Room {
	return &Room{
		id:         id,
		registry:   registry,
		opts:       opts,
		cmds:       make(chan command, mailboxSize),
		game:       game.New(),
		lastActive: time.Now(),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Join enqueues a membership request for a new connection.
func (r *Room) Join(connID ConnID, name string, sink Sink) error {
	return r.send(joinCmd{connID: connID, name: name, sink: sink})
}

// Leave enqueues a departure; disconnects are modeled this way rather than
// as interrupts, so in-flight commands finish first.
func (r *Room) Leave(connID ConnID) error {
	return r.send(leaveCmd{connID: connID})
}

// Deliver enqueues a decoded game message from a joined connection.
func (r *Room) Deliver(connID ConnID, env protocol.Envelope) error {
	return r.send(gameCmd{connID: connID, env: env})
}

// send enqueues without ever blocking. The closed flag is read under RLock
// so that retirement (which takes the write lock) can atomically observe an
// empty mailbox with no sends in flight.
func (r *Room) send(c command) error {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed {
		return ErrRoomClosed
	}
	select {
	case r.cmds <- c:
		return nil
	default:
		return ErrMailboxFull
	}
}

// run is the room goroutine: strict FIFO over the mailbox, plus a periodic
// idle check. One command fully completes (engine call and fan-out) before
// the next is dequeued.
func (r *Room) run() {
	ticker := time.NewTicker(r.opts.ReapInterval)
	defer ticker.Stop()
	log := r.opts.Logger.WithField("room", r.id)
	log.Info("room started")
	for {
		select {
		case cmd := <-r.cmds:
			r.lastActive = time.Now()
			r.handle(cmd)
		case <-ticker.C:
			if len(r.members) == 0 && time.Since(r.lastActive) > r.opts.IdleTimeout {
				if r.registry.retire(r) {
					log.Info("idle room removed")
					return
				}
			}
		}
	}
}

func (r *Room) handle(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		r.handleJoin(c)
	case leaveCmd:
		r.handleLeave(c.connID)
	case gameCmd:
		r.handleGameMsg(c)
	}
}

func (r *Room) handleJoin(c joinCmd) {
	pid := 0
	for _, m := range r.members {
		if m.pid >= pid {
			pid = m.pid + 1
		}
	}
	m := &member{connID: c.connID, pid: pid, name: c.name, sink: c.sink}
	r.members = append(r.members, m)
	r.opts.Logger.WithFields(logrus.Fields{
		"room": r.id, "conn": c.connID, "name": c.name, "pid": pid,
	}).Info("member joined")

	r.sendWelcome(m)
	r.publish([]game.Event{game.PlayerJoinedEvent(pid, c.name)})
	r.syncState()
}

func (r *Room) handleLeave(connID ConnID) {
	for i, m := range r.members {
		if m.connID == connID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			r.opts.Logger.WithFields(logrus.Fields{
				"room": r.id, "conn": connID, "pid": m.pid,
			}).Info("member left")
			return
		}
	}
}

func (r *Room) handleGameMsg(c gameCmd) {
	m := r.findMember(c.connID)
	if m == nil {
		r.opts.Logger.Warnf("room %s: message %q from unknown conn %d", r.id, c.env.Type, c.connID)
		return
	}
	switch c.env.Type {
	case protocol.TypeStartGame:
		r.handleStart(m, c.env)
	case protocol.TypePlayCard:
		r.handlePlay(m, c.env)
	case protocol.TypeDrawCard:
		r.handleDraw(m, c.env)
	case protocol.TypePassTurn:
		r.handlePass(m, c.env)
	case protocol.TypeChallengeWildDrawFour:
		r.handleChallenge(m, c.env)
	case protocol.TypeLeaveGame:
		// Departure is driven by the connection's Leave command; the
		// protocol message on its own changes nothing.
	case protocol.TypeJoinGame:
		r.sendError(m, "Already in room")
	default:
		r.sendError(m, fmt.Sprintf("Unknown message type: %s", c.env.Type))
	}
}

// handleStart seats the current members as slots 0..n-1 in join order,
// re-issues their Welcome with the final slot id, and initializes the
// engine with the roster.
func (r *Room) handleStart(m *member, env protocol.Envelope) {
	var msg protocol.StartGame
	if err := env.DecodeData(&msg); err != nil {
		r.sendError(m, err.Error())
		return
	}
	if r.game.Started() {
		r.sendError(m, "Game already started")
		return
	}
	if msg.PlayerID != m.pid {
		r.sendError(m, "Player mismatch")
		return
	}

	names := make([]string, len(r.members))
	for i, mem := range r.members {
		if mem.pid != i {
			mem.pid = i
			r.sendWelcome(mem)
		}
		names[i] = mem.name
	}
	batch := r.game.InitGame(names)
	r.opts.Logger.WithFields(logrus.Fields{
		"room": r.id, "players": len(names), "conn": m.connID,
	}).Info("game start")
	r.publish(batch)
	r.syncState()
}

func (r *Room) handlePlay(m *member, env protocol.Envelope) {
	var msg protocol.PlayCard
	if err := env.DecodeData(&msg); err != nil {
		r.sendError(m, err.Error())
		return
	}
	if !r.game.Started() {
		r.sendError(m, "Game not started")
		return
	}
	if msg.PlayerID != m.pid {
		r.sendError(m, "Player mismatch")
		return
	}
	if msg.PlayerID != r.game.CurrentPlayer() {
		r.sendError(m, "Not your turn")
		return
	}
	batch := r.game.PlayCard(msg.PlayerID, msg.CardIndex, msg.CallUno, msg.Color)
	r.publish(batch)
	r.syncState()
	r.resetIfOver(batch)
}

// handleDraw normalizes the requested count to at least one and issues that
// many independent engine draws, each with its own broadcast batch.
func (r *Room) handleDraw(m *member, env protocol.Envelope) {
	var msg protocol.DrawCard
	if err := env.DecodeData(&msg); err != nil {
		r.sendError(m, err.Error())
		return
	}
	if !r.game.Started() {
		r.sendError(m, "Game not started")
		return
	}
	if msg.PlayerID != m.pid {
		r.sendError(m, "Player mismatch")
		return
	}
	count := msg.Count
	if count < 1 {
		count = 1
	}
	for i := 0; i < count; i++ {
		r.publish(r.game.DrawCard(msg.PlayerID))
	}
	r.syncState()
}

func (r *Room) handlePass(m *member, env protocol.Envelope) {
	var msg protocol.PassTurn
	if err := env.DecodeData(&msg); err != nil {
		r.sendError(m, err.Error())
		return
	}
	if msg.PlayerID != m.pid {
		r.sendError(m, "Player mismatch")
		return
	}
	batch := r.game.Pass(msg.PlayerID)
	r.publish(batch)
	r.syncState()
}

// handleChallenge surfaces the unimplemented challenge rule as a rejection
// to the caller only; nothing is broadcast and nothing mutates.
func (r *Room) handleChallenge(m *member, env protocol.Envelope) {
	var msg protocol.ChallengeWildDrawFour
	if err := env.DecodeData(&msg); err != nil {
		r.sendError(m, err.Error())
		return
	}
	batch := r.game.Challenge(msg.ChallengerID, msg.ChallengedID)
	reason := "challenge is not implemented"
	if len(batch) > 0 && batch[0].Message != "" {
		reason = batch[0].Message
	}
	r.sendError(m, reason)
}

// resetIfOver swaps in a fresh, not-started engine once a batch carries
// GameOver. The member roster stays, so a new StartGame needs no rejoin.
func (r *Room) resetIfOver(batch []game.Event) {
	if !game.ContainsGameOver(batch) {
		return
	}
	r.game = game.New()
	r.opts.Logger.WithField("room", r.id).Info("game over, engine reset for a new game")
}

// publish runs the sink chain in registration order, then broadcasts the
// batch verbatim to every member. All members see all events; per-recipient
// filtering is deliberately absent, the private hand snapshot follows in
// syncState.
func (r *Room) publish(batch []game.Event) {
	if len(batch) == 0 {
		return
	}
	for _, s := range r.opts.Sinks {
		s.HandleBatch(r.id, batch)
	}
	frame, err := protocol.Encode(protocol.TypeEvents, batch)
	if err != nil {
		r.opts.Logger.Errorf("room %s: failed to encode event batch: %v", r.id, err)
		return
	}
	for _, m := range r.members {
		if !m.sink.Send(frame) {
			r.opts.Logger.Debugf("room %s: dropped events frame for conn %d", r.id, m.connID)
		}
	}
}

// syncState sends the two-phase resync: the public snapshot to everyone,
// then each member's private hand.
func (r *Room) syncState() {
	shared := protocol.SharedState{
		Players:       r.game.HandCounts(),
		TopCard:       r.game.TopCard(),
		CurrentPlayer: r.game.CurrentPlayer(),
		Clockwise:     r.game.Clockwise(),
	}
	sharedFrame, err := protocol.Encode(protocol.TypeSharedState, shared)
	if err != nil {
		r.opts.Logger.Errorf("room %s: failed to encode shared state: %v", r.id, err)
		return
	}
	for _, m := range r.members {
		m.sink.Send(sharedFrame)
		frame, err := protocol.Encode(protocol.TypePlayerState, protocol.PlayerState{
			PlayerID: m.pid,
			Hand:     r.game.Hand(m.pid),
		})
		if err != nil {
			r.opts.Logger.Errorf("room %s: failed to encode player state: %v", r.id, err)
			continue
		}
		m.sink.Send(frame)
	}
}

func (r *Room) sendWelcome(m *member) {
	sessionID := fmt.Sprintf("%s-%d", r.id, m.pid)
	if r.opts.SessionFn != nil {
		if token, err := r.opts.SessionFn(r.id, m.pid); err == nil {
			sessionID = token
		} else {
			r.opts.Logger.Warnf("room %s: session token for pid %d: %v", r.id, m.pid, err)
		}
	}
	frame, err := protocol.Encode(protocol.TypeWelcome, protocol.Welcome{
		PlayerID:  m.pid,
		SessionID: sessionID,
	})
	if err != nil {
		r.opts.Logger.Errorf("room %s: failed to encode welcome: %v", r.id, err)
		return
	}
	m.sink.Send(frame)
}

func (r *Room) sendError(m *member, message string) {
	r.opts.Logger.WithFields(logrus.Fields{
		"room": r.id, "conn": m.connID, "error": message,
	}).Debug("rejected command")
	m.sink.Send(protocol.EncodeServerError(message))
}

func (r *Room) findMember(connID ConnID) *member {
	for _, m := range r.members {
		if m.connID == connID {
			return m
		}
	}
	return nil
}
