// internal/game/player.go
package game

import "github.com/cardtable/uno/internal/cards"

// Player is one seat in a game: a stable slot id assigned at game start, a
// display name, and the hand the seat owns. Slot ids index the roster and
// are never reused within one game instance.
type Player struct {
	ID   int
	Name string
	Hand []cards.Card
}

// HandValue is the score the player is left holding: the sum of the point
// values of every card still in the hand.
func (p *Player) HandValue() int {
	total := 0
	for _, c := range p.Hand {
		total += c.Value()
	}
	return total
}

// removeCard takes the card at idx out of the hand, preserving the order of
// the remaining cards. The caller bounds-checks idx.
func (p *Player) removeCard(idx int) cards.Card {
	c := p.Hand[idx]
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return c
}
