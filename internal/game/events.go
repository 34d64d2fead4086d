// internal/game/events.go
package game

import "github.com/cardtable/uno/internal/cards"

// EventType is an enum-like type for the state transitions the engine emits.
type EventType string

const (
	EventPlayerJoined      EventType = "player_joined"
	EventCardPlayed        EventType = "card_played"
	EventCardDraw          EventType = "card_draw"
	EventDrawnCardPlayable EventType = "drawn_card_playable" // drawer may play the card or pass
	EventPlayerPassed      EventType = "player_passed"
	EventUnoCalled         EventType = "uno_called"
	EventUnoPenalty        EventType = "uno_penalty"
	EventDirectionChanged  EventType = "direction_changed"
	EventTopCardChanged    EventType = "top_card_changed"
	EventPlayerTurn        EventType = "player_turn"
	EventPlayerSkipped     EventType = "player_skipped"
	EventDrawTwoApplied    EventType = "draw_two_applied"
	EventDrawFourApplied   EventType = "draw_four_applied"
	EventGameOver          EventType = "game_over"
	EventGameError         EventType = "game_error"

	// The DrawFour challenge rule is not implemented; these types are part of
	// the schema but are never emitted by the engine.
	EventPlayerChallenged EventType = "player_challenged"
	EventChallengeFailed  EventType = "challenge_failed"
	EventChallengeSuccess EventType = "challenge_success"
)

// ScoreEntry is one row of the final ranking: a player's name and the point
// total of the cards left in their hand.
type ScoreEntry struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Event is an immutable record of one state transition. Each engine
// operation returns an ordered batch of events; the batch order is the
// authoritative causal order and is preserved all the way to clients.
type Event struct {
	Type      EventType    `json:"type"`
	PlayerID  *int         `json:"player_id,omitempty"`
	TargetID  *int         `json:"target_player_id,omitempty"`
	Name      string       `json:"name,omitempty"`
	Card      *cards.Card  `json:"card,omitempty"`
	TopCard   *cards.Card  `json:"top_card,omitempty"`
	Clockwise *bool        `json:"clockwise,omitempty"`
	Winner    *int         `json:"winner,omitempty"`
	Scores    []ScoreEntry `json:"scores,omitempty"`
	Message   string       `json:"message,omitempty"`
}

func intp(v int) *int    { return &v }
func boolp(v bool) *bool { return &v }

func playerEvent(typ EventType, playerID int) Event {
	return Event{Type: typ, PlayerID: intp(playerID)}
}

func targetEvent(typ EventType, targetID int) Event {
	return Event{Type: typ, TargetID: intp(targetID)}
}

func cardDrawEvent(playerID int, card cards.Card) Event {
	return Event{Type: EventCardDraw, PlayerID: intp(playerID), Card: &card}
}

func errorEvent(message string) Event {
	return Event{Type: EventGameError, Message: message}
}

func errorBatch(message string) []Event {
	return []Event{errorEvent(message)}
}

// PlayerJoinedEvent is the roster announcement for one seat. Exposed so the
// room can announce a connection joining before any game has started.
func PlayerJoinedEvent(playerID int, name string) Event {
	return Event{Type: EventPlayerJoined, PlayerID: intp(playerID), Name: name}
}

// ContainsGameOver reports whether a batch ends the game. Rooms use it to
// swap in a fresh engine after the final state sync.
func ContainsGameOver(batch []Event) bool {
	for _, ev := range batch {
		if ev.Type == EventGameOver {
			return true
		}
	}
	return false
}
