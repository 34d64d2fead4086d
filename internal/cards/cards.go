// internal/cards/cards.go
package cards

import (
	"fmt"
	"math/rand"
	"time"
)

// Color is one of the four UNO suit colors. A wild card carries no color
// while it sits in the deck; a color is bound to it at play time.
type Color string

const (
	Red    Color = "RED"
	Green  Color = "GREEN"
	Blue   Color = "BLUE"
	Yellow Color = "YELLOW"
)

// Colors lists every playable color in a stable order.
var Colors = []Color{Red, Green, Blue, Yellow}

// Valid reports whether c is one of the four playable colors.
func (c Color) Valid() bool {
	switch c {
	case Red, Green, Blue, Yellow:
		return true
	}
	return false
}

// Kind discriminates the three card families.
type Kind string

const (
	KindNumber Kind = "number"
	KindAction Kind = "action"
	KindWild   Kind = "wild"
)

// Action identifies a colored action card.
type Action string

const (
	Skip    Action = "SKIP"
	Reverse Action = "REVERSE"
	DrawTwo Action = "DRAWTWO"
)

// WildType identifies a wild card.
type WildType string

const (
	Wild     WildType = "WILD"
	DrawFour WildType = "DRAWFOUR"
)

// Card is an immutable card value. Exactly one of Action or Wild is set
// depending on Kind; Number is meaningful only for KindNumber.
type Card struct {
	Kind   Kind     `json:"kind"`
	Color  Color    `json:"color,omitempty"`
	Number int      `json:"number"`
	Action Action   `json:"action,omitempty"`
	Wild   WildType `json:"wild,omitempty"`
}

// NumberCard builds a colored digit card (0-9).
func NumberCard(color Color, number int) Card {
	return Card{Kind: KindNumber, Color: color, Number: number}
}

// ActionCard builds a colored Skip, Reverse or DrawTwo.
func ActionCard(color Color, action Action) Card {
	return Card{Kind: KindAction, Color: color, Action: action}
}

// WildCard builds a colorless Wild or DrawFour, the form it takes in the deck.
func WildCard(wild WildType) Card {
	return Card{Kind: KindWild, Wild: wild}
}

// IsWild reports whether the card is a Wild or DrawFour.
func (c Card) IsWild() bool { return c.Kind == KindWild }

// WithColor returns a copy of the card with the given color bound to it.
// Used to coerce a wild card at play time.
func (c Card) WithColor(color Color) Card {
	c.Color = color
	return c
}

// Uncolored returns the deck form of the card: wilds lose their bound color,
// every other card is returned unchanged.
func (c Card) Uncolored() Card {
	if c.Kind == KindWild {
		c.Color = ""
	}
	return c
}

// Value is the card's scoring weight when left in a losing hand:
// the digit for number cards, 20 for action cards, 50 for wilds.
func (c Card) Value() int {
	switch c.Kind {
	case KindNumber:
		return c.Number
	case KindAction:
		return 20
	default:
		return 50
	}
}

func (c Card) String() string {
	switch c.Kind {
	case KindNumber:
		return fmt.Sprintf("%s %d", c.Color, c.Number)
	case KindAction:
		return fmt.Sprintf("%s %s", c.Color, c.Action)
	default:
		if c.Color != "" {
			return fmt.Sprintf("%s %s", c.Color, c.Wild)
		}
		return string(c.Wild)
	}
}

// Matches is the single legality gate for playing a card. With no top card
// anything goes; a wild is always legal; otherwise the candidate must share
// the top's color, or both are numbers with the same digit, or both are
// action cards of the same action.
func Matches(candidate Card, top *Card) bool {
	if top == nil {
		return true
	}
	if candidate.IsWild() {
		return true
	}
	if candidate.Color == top.Color {
		return true
	}
	if candidate.Kind == KindNumber && top.Kind == KindNumber && candidate.Number == top.Number {
		return true
	}
	if candidate.Kind == KindAction && top.Kind == KindAction && candidate.Action == top.Action {
		return true
	}
	return false
}

// NewDeck builds the fixed 108 card composition: per color one zero and two
// of each digit 1-9 (76 number cards), two of each action (24 action cards),
// and four Wild plus four DrawFour (8 wilds). The deck is returned unshuffled.
func NewDeck() []Card {
	deck := make([]Card, 0, 108)
	for _, color := range Colors {
		deck = append(deck, NumberCard(color, 0))
		for n := 1; n <= 9; n++ {
			deck = append(deck, NumberCard(color, n), NumberCard(color, n))
		}
		for i := 0; i < 2; i++ {
			deck = append(deck, ActionCard(color, Skip), ActionCard(color, Reverse), ActionCard(color, DrawTwo))
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, WildCard(Wild), WildCard(DrawFour))
	}
	return deck
}

// Shuffle permutes the deck uniformly in place.
func Shuffle(deck []Card) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}
