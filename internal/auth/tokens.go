package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the authenticated principal bound to a connection or request.
// It is decoded from a verified token, never from client-supplied fields.
type Identity struct {
	ID   int
	Name string
}

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	// ErrNoSubject means the signature verified but the claims carry no
	// user id, so there is no identity to bind the connection to.
	ErrNoSubject = errors.New("token has no user id")
)

type Claims struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies the bearer tokens shared by the HTTP API and
// the websocket handshake. HS256 with a single shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

func NewTokens(secret string) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    24 * time.Hour,
		issuer: "foodline",
	}
}

func (t *Tokens) Issue(id int, username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       id,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(t.ttl)),
		},
	})
	return token.SignedString(t.secret)
}

// Verify is the auth gate: it validates signature and expiry and returns
// the decoded Identity. Callers must refuse the connection on any error.
func (t *Tokens) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	if !token.Valid {
		return Identity{}, ErrTokenInvalid
	}
	if claims.ID == 0 {
		return Identity{}, ErrNoSubject
	}

	return Identity{ID: claims.ID, Name: claims.Username}, nil
}
