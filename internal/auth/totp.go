package auth

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
)

const recoveryCodeCount = 9

// NewTOTP generates a secret for account and the otpauth:// URL an
// authenticator app can scan.
func NewTOTP(issuer, account string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: issuer, AccountName: account})
	if err != nil {
		return "", "", fmt.Errorf("generate totp: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

func ValidateTOTP(secret, code string) bool {
	if secret == "" {
		return false
	}
	return totp.Validate(strings.TrimSpace(code), secret)
}

func NewRecoveryCodes() []string {
	codes := make([]string, recoveryCodeCount)
	for i := range codes {
		codes[i] = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	return codes
}

// UseRecoveryCode removes code from codes. ok is false when code is not
// one of them.
func UseRecoveryCode(codes []string, code string) (rest []string, ok bool) {
	i := slices.Index(codes, strings.TrimSpace(code))
	if i < 0 {
		return codes, false
	}
	return slices.Delete(slices.Clone(codes), i, i+1), true
}
