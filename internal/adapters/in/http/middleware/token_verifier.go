package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("auth: invalid token")

// FirebaseVerifier verifies Firebase ID tokens.
type FirebaseVerifier struct {
	Client *firebaseauth.Client
}

func (v *FirebaseVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if v == nil || v.Client == nil {
		return "", errors.New("auth: firebase client is nil")
	}
	t, err := v.Client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return strings.TrimSpace(t.UID), nil
}

// JWTVerifier verifies HS256 tokens issued by the storefront's own login.
// The user id is read from the "id" claim, falling back to "sub".
type JWTVerifier struct {
	Secret []byte
	Issuer string
}

func NewJWTVerifier(secret, issuer string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is empty")
	}
	return &JWTVerifier{Secret: []byte(secret), Issuer: strings.TrimSpace(issuer)}, nil
}

type storefrontClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}

	var claims storefrontClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	uid := strings.TrimSpace(claims.UserID)
	if uid == "" {
		uid = strings.TrimSpace(claims.Subject)
	}
	if uid == "" {
		return "", fmt.Errorf("%w: no user id claim", ErrTokenInvalid)
	}
	return uid, nil
}
