package remote

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/dreamsync/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// TokenSource supplies the bearer token for remote API calls.
type TokenSource interface {
	Token() (string, error)
}

// FileTokenSource reads the token from a file (written by whatever
// authentication flow the surrounding app runs). When the token is a JWT,
// its exp claim is checked client-side so an expired token fails fast with
// common.ErrUnauthorized instead of a doomed round-trip. Opaque tokens are
// passed through as-is.
type FileTokenSource struct {
	Path string

	// now is a test seam.
	now func() time.Time
}

// NewFileTokenSource builds a token source for the given file path.
func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{Path: path, now: time.Now}
}

func (s *FileTokenSource) Token() (string, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read token file: %v", common.ErrUnauthorized, err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", fmt.Errorf("%w: empty token file", common.ErrUnauthorized)
	}

	if exp, ok := jwtExpiry(token); ok && !exp.After(s.nowFn()) {
		return "", fmt.Errorf("%w: token expired at %s", common.ErrUnauthorized, exp.Format(time.RFC3339))
	}
	return token, nil
}

// Save writes a fresh token with owner-only permissions.
func (s *FileTokenSource) Save(token string) error {
	return os.WriteFile(s.Path, []byte(token), 0o600)
}

func (s *FileTokenSource) nowFn() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// jwtExpiry extracts the exp claim without verifying the signature. The
// server still validates the token; this only avoids pointless calls.
// Returns ok=false for non-JWT or exp-less tokens.
func jwtExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
