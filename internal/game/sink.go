// internal/game/sink.go
package game

import "github.com/sirupsen/logrus"

// Sink consumes every event batch a room publishes. Sinks are registered at
// startup and invoked synchronously, in registration order, before the batch
// is broadcast to connections. Implementations must not block the room loop.
type Sink interface {
	HandleBatch(roomID string, batch []Event)
}

// LogSink writes every event to the process log.
type LogSink struct {
	Logger *logrus.Logger
}

func (s *LogSink) HandleBatch(roomID string, batch []Event) {
	for _, ev := range batch {
		fields := logrus.Fields{"room": roomID, "event": ev.Type}
		if ev.PlayerID != nil {
			fields["player"] = *ev.PlayerID
		}
		if ev.TargetID != nil {
			fields["target"] = *ev.TargetID
		}
		if ev.Message != "" {
			fields["message"] = ev.Message
		}
		s.Logger.WithFields(fields).Debug("game event")
	}
}
