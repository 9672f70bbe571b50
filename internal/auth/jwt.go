// Package auth provides the bearer-token verifiers mounted in front of the
// SCIM surface: a shared-secret JWT verifier, an OIDC verifier, and an
// opt-in insecure claims parser for integration runs.
package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/scimbridge/scimbridge/pkg/middleware"
)

// JWTVerifier validates HS256-signed bearer tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

type jwtToken struct {
	claims jwt.MapClaims
}

func (t *jwtToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (ver *JWTVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return ver.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return &jwtToken{claims: claims}, nil
}
