package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"raftlab/internal/rpc"
)

// DefaultTokenTTL keeps node tokens short lived; one is minted per request.
const DefaultTokenTTL = time.Minute

// NodeTokens issues and validates the bearer tokens nodes gossip with
type NodeTokens struct {
	secret []byte
	ttl    time.Duration
}

func NewNodeTokens(secret string, ttl time.Duration) *NodeTokens {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &NodeTokens{secret: []byte(secret), ttl: ttl}
}

// Issue signs an HS256 token naming the sending node
func (t *NodeTokens) Issue(from rpc.NodeID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"node_id": string(from),
		"iat":     now.Unix(),
		"exp":     now.Add(t.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign node token: %w", err)
	}
	return signed, nil
}

// Validate returns the sending node of a valid token
func (t *NodeTokens) Validate(tokenString string) (rpc.NodeID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	raw, ok := claims["node_id"].(string)
	if !ok {
		return "", errors.New("node_id claim is not a string")
	}
	return rpc.ParseNodeID(raw)
}
