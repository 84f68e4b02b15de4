package usecase

import (
	"fmt"
	"time"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/domain"
	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
)

const (
	signupSubject   = "Verify your email - TrendKart"
	recoverySubject = "Password Reset OTP - TrendKart"
)

// codeMessage renders the email carrying a freshly issued code.
func codeMessage(purpose domain.LedgerPurpose, to, code string, ttl time.Duration) port.Message {
	validity := formatValidity(ttl)

	if purpose == domain.PurposeSignup {
		return port.Message{
			To:      to,
			Subject: signupSubject,
			Body: fmt.Sprintf("Hello,\n\nYour OTP to verify your TrendKart account is: %s\n\n"+
				"This OTP is valid for %s.\n\n"+
				"If you did not request this, please ignore this email.\n\nRegards,\nSupport Team", code, validity),
		}
	}

	return port.Message{
		To:      to,
		Subject: recoverySubject,
		Body: fmt.Sprintf("Hello,\n\nYour OTP for password reset is: %s\n\n"+
			"This OTP is valid for %s.\n\n"+
			"If you did not request this, please ignore this email.\n\nRegards,\nSupport Team", code, validity),
	}
}

func formatValidity(ttl time.Duration) string {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
