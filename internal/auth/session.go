// internal/auth/session.go
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Sessions issues and verifies the signed session tokens handed out in
// Welcome messages. A client rejoining after a drop can present its token
// in JoinGame; the server checks the room binding. Seats are not resumed,
// the rejoiner gets a fresh slot.
type Sessions struct {
	secret []byte
}

// NewSessions builds an issuer from the configured secret. An empty secret
// gets a random per-process one, which is fine for ephemeral rooms.
func NewSessions(secret string) *Sessions {
	if secret == "" {
		secret = uuid.NewString()
	}
	return &Sessions{secret: []byte(secret)}
}

// CreateToken signs a session token binding a room id to a player slot.
func (s *Sessions) CreateToken(roomID string, playerID int) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"room": roomID,
		"pid":  playerID,
		"jti":  uuid.NewString(),
		"iat":  time.Now().Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and returns the room id and player slot
// the token was issued for.
func (s *Sessions) VerifyToken(tokenString string) (string, int, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse session token: %w", err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return "", 0, fmt.Errorf("invalid session token")
	}
	roomID, ok := claims["room"].(string)
	if !ok {
		return "", 0, fmt.Errorf("session token missing room claim")
	}
	pid, ok := claims["pid"].(float64)
	if !ok {
		return "", 0, fmt.Errorf("session token missing pid claim")
	}
	return roomID, int(pid), nil
}
