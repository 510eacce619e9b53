package storage

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid is returned when a download token fails verification,
// including expiry.
var ErrTokenInvalid = errors.New("invalid or expired download token")

// URLSigner mints and verifies capability tokens for attachment downloads.
// Each token binds an attachment id to a deadline; the permanent storage
// path is never handed out.
type URLSigner struct {
	secret []byte
	now    func() time.Time
}

// NewURLSigner constructs a URLSigner.
func NewURLSigner(secret string) *URLSigner {
	return &URLSigner{secret: []byte(secret), now: time.Now}
}

// Sign mints a token granting read access to the attachment until the ttl
// elapses. A fresh token is minted on every call so the exposure window is
// bounded independently of the attachment's own expiry.
func (s *URLSigner) Sign(attachmentID int, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(attachmentID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// SignedURL renders the relative download URL for an attachment token.
func (s *URLSigner) SignedURL(attachmentID int, ttl time.Duration) (string, error) {
	token, err := s.Sign(attachmentID, ttl)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("/attachments/%d/object?token=%s", attachmentID, token), nil
}

// Verify checks the token and returns the attachment id it grants.
func (s *URLSigner) Verify(tokenString string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return 0, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, ErrTokenInvalid
	}
	attachmentID, err := strconv.Atoi(claims.Subject)
	if err != nil || attachmentID <= 0 {
		return 0, ErrTokenInvalid
	}
	return attachmentID, nil
}
