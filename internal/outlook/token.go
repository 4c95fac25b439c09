package outlook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var ErrNoMailboxClaim = errors.New("outlook: token has no mailbox claim")

var mailboxClaims = []string{"smtp", "upn", "preferred_username", "email"}

// MailboxFromToken reads the mailbox address from a host callback token.
// The signature is not checked.
func MailboxFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("outlook: parse token: %w", err)
	}
	for _, name := range mailboxClaims {
		if v, ok := claims[name].(string); ok && strings.Contains(v, "@") {
			return strings.TrimSpace(v), nil
		}
	}
	return "", ErrNoMailboxClaim
}
