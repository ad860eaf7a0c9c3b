package auth

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// maxSubjectLen bounds the user id, which ends up in every cart and
// checkout key.
const maxSubjectLen = 128

// ClaimPolicy decides whether a signature-verified token may act as a
// checkout user.
type ClaimPolicy struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// Check validates the exp/nbf window, the configured issuer and audience,
// and that the subject is usable as a storage key segment.
func (p ClaimPolicy) Check(tok jwt.Token, now time.Time) error {
	if tok == nil {
		return errors.New("auth: token is nil")
	}
	if err := checkSubject(tok.Subject()); err != nil {
		return err
	}
	opts := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithAcceptableSkew(max(p.ClockSkew, 0)),
	}
	if p.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.Issuer))
	}
	if p.Audience != "" {
		opts = append(opts, jwt.WithAudience(p.Audience))
	}
	return jwt.Validate(tok, opts...)
}

func checkSubject(sub string) error {
	switch {
	case sub == "":
		return errors.New("auth: token missing subject")
	case len(sub) > maxSubjectLen:
		return errors.New("auth: subject too long")
	case strings.ContainsRune(sub, ':'):
		return errors.New("auth: subject must not contain ':'")
	}
	for _, r := range sub {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return errors.New("auth: subject contains whitespace or control characters")
		}
	}
	return nil
}
