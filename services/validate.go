package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/lborres/tanod/core"
)

// MinSecretLength is the minimum secret length in Unicode code points.
const MinSecretLength = 8

// NormalizeEmail is the canonical form used for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail checks the shape local@domain.tld on an already normalized
// address: one @, a non-empty local part, and a dotted domain without empty
// labels.
func validEmail(email string) bool {
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" {
			return false
		}
	}
	return true
}

func checkSecret(secret string) error {
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return core.ErrWeakSecret
	}
	return nil
}

// profileValidator checks the length limits declared on core.Account.
type profileValidator struct {
	v *validator.Validate
}

func newProfileValidator() *profileValidator {
	return &profileValidator{v: validator.New()}
}

func (pv *profileValidator) check(a *core.Account) error {
	err := pv.v.Struct(a)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make([]string, 0, len(ve))
		for _, fe := range ve {
			fields = append(fields, fmt.Sprintf("%s longer than %s characters", fe.Field(), fe.Param()))
		}
		return fmt.Errorf("%w: %s", core.ErrInvalidProfile, strings.Join(fields, "; "))
	}
	return err
}
