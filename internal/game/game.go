// internal/game/game.go
package game

import (
	"fmt"
	"sort"

	"github.com/cardtable/uno/internal/cards"
)

const initialHandSize = 7

// Game is the authoritative rule state machine for one UNO game. It is not
// safe for concurrent use: exactly one room goroutine owns an instance and
// serializes every call. All rule outcomes, including rejections, are
// reported as ordered Event batches; a batch containing a GameError means
// the command mutated nothing (resource exhaustion aside).
type Game struct {
	players   []*Player
	deck      []cards.Card // draw pile, consumed from the end
	played    []cards.Card // face-up pile; the last element is the active top
	current   int
	clockwise bool
	started   bool
}

// New returns a fresh, not-started game with a shuffled deck.
func New() *Game {
	deck := cards.NewDeck()
	cards.Shuffle(deck)
	return &Game{deck: deck, clockwise: true}
}

// Started reports whether InitGame has completed.
func (g *Game) Started() bool { return g.started }

// CurrentPlayer is the slot id whose turn it is. Meaningful once started.
func (g *Game) CurrentPlayer() int { return g.current }

// Clockwise reports the turn direction.
func (g *Game) Clockwise() bool { return g.clockwise }

// PlayerCount is the number of seats in the roster.
func (g *Game) PlayerCount() int { return len(g.players) }

// TopCard returns a copy of the active discard top, or nil before the first
// card is revealed.
func (g *Game) TopCard() *cards.Card {
	if len(g.played) == 0 {
		return nil
	}
	top := g.played[len(g.played)-1]
	return &top
}

// HandCount is one entry of the public roster view.
type HandCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// HandCounts returns each seat's name and hand size in slot order.
func (g *Game) HandCounts() []HandCount {
	counts := make([]HandCount, len(g.players))
	for i, p := range g.players {
		counts[i] = HandCount{Name: p.Name, Count: len(p.Hand)}
	}
	return counts
}

// Hand returns a copy of one seat's hand, or nil for an unknown slot.
func (g *Game) Hand(playerID int) []cards.Card {
	if playerID < 0 || playerID >= len(g.players) {
		return nil
	}
	hand := make([]cards.Card, len(g.players[playerID].Hand))
	copy(hand, g.players[playerID].Hand)
	return hand
}

// InitGame registers one seat per name, deals seven cards to each in roster
// order, and reveals number cards from the deck until one can seed the
// discard top (non-number cards go back in and the deck is reshuffled).
// Rejects with a GameError batch if the game has already started.
func (g *Game) InitGame(names []string) []Event {
	if g.started {
		return errorBatch("game already started")
	}
	if len(names) == 0 {
		return errorBatch("cannot start a game with no players")
	}

	var batch []Event
	for i, name := range names {
		g.players = append(g.players, &Player{ID: i, Name: name})
		batch = append(batch, PlayerJoinedEvent(i, name))
	}
	for _, p := range g.players {
		for i := 0; i < initialHandSize; i++ {
			c, ok := g.draw()
			if !ok {
				g.resetState()
				return append(batch, errorEvent("deck exhausted during the initial deal"))
			}
			p.Hand = append(p.Hand, c)
			batch = append(batch, cardDrawEvent(p.ID, c))
		}
	}

	if !deckHasNumberCard(g.deck) {
		g.resetState()
		return append(batch, errorEvent("deck exhausted before a number card could start the discard"))
	}
	for {
		c := g.deck[len(g.deck)-1]
		g.deck = g.deck[:len(g.deck)-1]
		if c.Kind == cards.KindNumber {
			g.played = append(g.played, c)
			batch = append(batch, Event{Type: EventTopCardChanged, TopCard: &c})
			break
		}
		g.deck = append(g.deck, c)
		cards.Shuffle(g.deck)
	}

	g.started = true
	g.current = 0
	return append(batch, playerEvent(EventPlayerTurn, 0))
}

// PlayCard plays the card at cardIndex from the current player's hand. A
// wild card is coerced to the supplied color before the legality check. On
// success the batch carries CardPlayed, TopCardChanged, the card's effect,
// the UNO-call outcome, and finally either GameOver or PlayerTurn.
func (g *Game) PlayCard(playerID, cardIndex int, callUno bool, color cards.Color) []Event {
	if !g.started {
		return errorBatch("game not started")
	}
	if playerID != g.current {
		return errorBatch("not your turn")
	}
	p := g.players[g.current]
	if cardIndex < 0 || cardIndex >= len(p.Hand) {
		return errorBatch(fmt.Sprintf("invalid card index %d", cardIndex))
	}

	c := p.Hand[cardIndex]
	if c.IsWild() {
		if !color.Valid() {
			return errorBatch("a wild card must be played with a color")
		}
		c = c.WithColor(color)
	}
	if !cards.Matches(c, g.TopCard()) {
		return errorBatch("card does not match the top card")
	}

	p.removeCard(cardIndex)
	g.played = append(g.played, c)
	batch := []Event{
		{Type: EventCardPlayed, PlayerID: intp(playerID), Card: &c},
		{Type: EventTopCardChanged, TopCard: &c},
	}
	batch = g.applyEffect(c, batch)

	if len(p.Hand) == 0 {
		g.started = false
		return append(batch, g.gameOverEvent(playerID))
	}

	// The UNO declaration must agree with the hand having exactly one card
	// left; a wrong declaration either way costs two penalty cards.
	if callUno != (len(p.Hand) == 1) {
		batch = append(batch, playerEvent(EventUnoPenalty, playerID))
		batch = g.dealTo(playerID, 2, batch)
	} else if callUno {
		batch = append(batch, playerEvent(EventUnoCalled, playerID))
	}
	return append(batch, playerEvent(EventPlayerTurn, g.current))
}

// applyEffect applies the played card's effect and advances the turn
// pointer. "Next" is always evaluated relative to the acting player under
// the direction in force at that moment.
func (g *Game) applyEffect(c cards.Card, batch []Event) []Event {
	switch {
	case c.Kind == cards.KindAction && c.Action == cards.Skip:
		skipped := g.nextIndex(g.current)
		batch = append(batch, playerEvent(EventPlayerSkipped, skipped))
		g.current = g.nextIndex(skipped)
	case c.Kind == cards.KindAction && c.Action == cards.DrawTwo:
		target := g.nextIndex(g.current)
		batch = g.dealTo(target, 2, batch)
		batch = append(batch, targetEvent(EventDrawTwoApplied, target))
		g.current = g.nextIndex(target)
	case c.Kind == cards.KindAction && c.Action == cards.Reverse:
		g.clockwise = !g.clockwise
		batch = append(batch, Event{Type: EventDirectionChanged, Clockwise: boolp(g.clockwise)})
		g.current = g.nextIndex(g.current)
	case c.Kind == cards.KindWild && c.Wild == cards.DrawFour:
		target := g.nextIndex(g.current)
		batch = g.dealTo(target, 4, batch)
		batch = append(batch, targetEvent(EventDrawFourApplied, target))
		g.current = g.nextIndex(target)
	default: // number card or plain wild
		g.current = g.nextIndex(g.current)
	}
	return batch
}

// DrawCard draws one card for the current player. If the drawn card is
// legal against the top it stays playable and the turn does not move;
// otherwise the turn passes automatically.
func (g *Game) DrawCard(playerID int) []Event {
	if !g.started {
		return errorBatch("game not started")
	}
	if playerID != g.current {
		return errorBatch("not your turn")
	}
	c, ok := g.draw()
	if !ok {
		return errorBatch("no cards left to draw")
	}
	p := g.players[playerID]
	p.Hand = append(p.Hand, c)
	batch := []Event{cardDrawEvent(playerID, c)}

	if cards.Matches(c, g.TopCard()) {
		return append(batch, playerEvent(EventDrawnCardPlayable, playerID))
	}
	return g.passTurn(playerID, batch)
}

// Pass ends the current player's turn without playing a card.
func (g *Game) Pass(playerID int) []Event {
	if !g.started {
		return errorBatch("game not started")
	}
	if playerID != g.current {
		return errorBatch("not your turn")
	}
	return g.passTurn(playerID, nil)
}

func (g *Game) passTurn(playerID int, batch []Event) []Event {
	batch = append(batch, playerEvent(EventPlayerPassed, playerID))
	g.current = g.nextIndex(g.current)
	return append(batch, playerEvent(EventPlayerTurn, g.current))
}

// Challenge is the DrawFour challenge stub. The rule is intentionally not
// implemented: every challenge resolves as a rejection and nothing mutates.
func (g *Game) Challenge(challengerID, challengedID int) []Event {
	return errorBatch("challenge is not implemented")
}

// nextIndex is the roster index following from under the current direction.
func (g *Game) nextIndex(from int) int {
	n := len(g.players)
	if g.clockwise {
		return (from + 1) % n
	}
	return (from + n - 1) % n
}

// dealTo moves count cards from the deck into a player's hand, emitting one
// CardDraw per card. Exhaustion mid-deal appends a GameError and stops; the
// cards already dealt stay dealt.
func (g *Game) dealTo(playerID, count int, batch []Event) []Event {
	p := g.players[playerID]
	for i := 0; i < count; i++ {
		c, ok := g.draw()
		if !ok {
			return append(batch, errorEvent("no cards left to draw"))
		}
		p.Hand = append(p.Hand, c)
		batch = append(batch, cardDrawEvent(playerID, c))
	}
	return batch
}

// draw pops one card from the deck, recycling the face-up pile below the
// active top (wilds reset to colorless, pile reshuffled) when the deck runs
// dry. Returns false only when no card remains outside hands and the top.
func (g *Game) draw() (cards.Card, bool) {
	if len(g.deck) == 0 {
		if len(g.played) <= 1 {
			return cards.Card{}, false
		}
		recycled := g.played[:len(g.played)-1]
		g.played = g.played[len(g.played)-1:]
		for i, c := range recycled {
			recycled[i] = c.Uncolored()
		}
		cards.Shuffle(recycled)
		g.deck = append(g.deck, recycled...)
	}
	c := g.deck[len(g.deck)-1]
	g.deck = g.deck[:len(g.deck)-1]
	return c, true
}

// gameOverEvent builds the final ranking: every seat's remaining-hand value,
// sorted ascending. Equal scores keep roster order.
func (g *Game) gameOverEvent(winner int) Event {
	scores := make([]ScoreEntry, len(g.players))
	for i, p := range g.players {
		scores[i] = ScoreEntry{Name: p.Name, Score: p.HandValue()}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score < scores[j].Score })
	return Event{Type: EventGameOver, Winner: intp(winner), Scores: scores}
}

func deckHasNumberCard(deck []cards.Card) bool {
	for _, c := range deck {
		if c.Kind == cards.KindNumber {
			return true
		}
	}
	return false
}

// resetState restores a fresh lobby state after a failed deal.
func (g *Game) resetState() {
	deck := cards.NewDeck()
	cards.Shuffle(deck)
	g.players = nil
	g.deck = deck
	g.played = nil
	g.current = 0
	g.clockwise = true
	g.started = false
}
