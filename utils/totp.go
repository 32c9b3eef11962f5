package utils

import (
	"github.com/pquerna/otp/totp"
)

const totpIssuer = "Finanças"

// GenerateTOTPSecret returns a new secret and its otpauth:// URL for QR codes.
func GenerateTOTPSecret(email string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: email,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

func VerifyTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
