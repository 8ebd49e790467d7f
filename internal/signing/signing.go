// Package signing issues and checks the upload tokens behind presigned URLs
// for the in-memory blob backend, which the API serves itself.
package signing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers bad signatures, expiry and a ref mismatch.
var ErrInvalidToken = errors.New("invalid upload token")

const audience = "blob-upload"

// Signer signs upload tokens with HMAC-SHA256.
type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns a token allowing one PUT of ref until ttl elapses.
func (s *Signer) Sign(ref string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   ref,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign upload token: %w", err)
	}
	return signed, nil
}

// Verify checks that token is valid now and was issued for ref.
func (s *Signer) Verify(token, ref string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != ref {
		return fmt.Errorf("%w: issued for another object", ErrInvalidToken)
	}
	return nil
}

// UploadURL builds the API URL a client PUTs the file to.
func (s *Signer) UploadURL(baseURL, ref string, ttl time.Duration) (string, error) {
	token, err := s.Sign(ref, ttl)
	if err != nil {
		return "", err
	}
	segments := strings.Split(ref, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(baseURL, "/") + "/blobs/" + strings.Join(segments, "/") +
		"?token=" + url.QueryEscape(token), nil
}
