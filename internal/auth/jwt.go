package auth

// SESSION TOKENS:
// The session cookie holds a JWT whose "jti" is the server-side session ID and
// whose "sub" is the user ID. The signature stops clients from forging or
// editing either; the session row in the database is what makes logout work,
// since a revoked row rejects a token that is otherwise still valid.
//
//	{"iss":"blog","sub":"42","jti":"cv37rs3pp9olc6atsptg","iat":...,"exp":...}

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "blog"

// MinSecretLength is the shortest HMAC secret NewTokenService accepts.
const MinSecretLength = 16

var (
	ErrTokenExpired = errors.New("auth: token expired")
	ErrTokenInvalid = errors.New("auth: invalid token")
)

// SessionToken is what a verified token says about its bearer.
type SessionToken struct {
	SessionID string
	UserID    int64
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens with HS256.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// Generate one with: openssl rand -hex 32
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: secret must be at least %d characters", MinSecretLength)
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for sessionID that stops verifying at expiresAt.
func (s *TokenService) Issue(sessionID string, userID int64, expiresAt time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(userID, 10),
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the token's claims.
//
// jwt.WithValidMethods pins HS256 so a token declaring "alg":"none" or an
// asymmetric algorithm is refused before the key is consulted.
func (s *TokenService) Parse(tokenStr string) (*SessionToken, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || c.ID == "" {
		return nil, ErrTokenInvalid
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrTokenInvalid, c.Subject)
	}

	return &SessionToken{
		SessionID: c.ID,
		UserID:    userID,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
