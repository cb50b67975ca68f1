package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token expired")
	ErrMissingClaims = errors.New("missing required claims")
)

// Claims are the identity provider claims the API relies on.
type Claims struct {
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Profile() Profile {
	return Profile{Email: c.Email, Name: c.Name, Picture: c.Picture}
}

// Verifier validates bearer tokens issued by the identity provider (RS256)
// or, for local development, tokens signed with a shared secret (HS256).
type Verifier struct {
	publicKey *rsa.PublicKey
	secret    []byte
	issuer    string
	audience  string
}

func NewRSAVerifier(pemBytes []byte, issuer, audience string) (*Verifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Verifier{publicKey: key, issuer: issuer, audience: audience}, nil
}

func NewHMACVerifier(secret, issuer, audience string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

// LoadVerifier prefers the public key file and falls back to the shared
// secret.
func LoadVerifier(publicKeyFile, secret, issuer, audience string) (*Verifier, error) {
	if publicKeyFile != "" {
		b, err := os.ReadFile(publicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		return NewRSAVerifier(b, issuer, audience)
	}
	if secret == "" {
		return nil, errors.New("no token verification key configured")
	}
	return NewHMACVerifier(secret, issuer, audience), nil
}

func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	var opts []jwt.ParserOption
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	if v.publicKey != nil {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return v.publicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return v.secret, nil
}

// IssueDevToken signs an HS256 token for local development. It fails for
// RS256 verifiers since the private key lives with the identity provider.
func (v *Verifier) IssueDevToken(sub string, p Profile, ttl time.Duration) (string, error) {
	if v.secret == nil {
		return "", errors.New("dev tokens require an HMAC secret")
	}
	now := time.Now()
	claims := Claims{
		Email:   p.Email,
		Name:    p.Name,
		Picture: p.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
