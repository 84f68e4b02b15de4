package usecase

import "strings"

// MaskEmail hides most of an address for display to a caller who may not own it:
// "jane.doe@example.com" becomes "ja*****e@e*********m". Addresses whose local
// part is shorter than two characters are returned unchanged.
func MaskEmail(email string) string {
	e := strings.TrimSpace(email)
	at := strings.Index(e, "@")
	if at <= 1 {
		return e
	}

	name := []rune(e[:at])
	domainPart := []rune(e[at+1:])

	masked := string(name[:min(2, len(name))]) +
		strings.Repeat("*", max(2, len(name)-3)) +
		string(name[len(name)-1:])

	maskedDomain := string(domainPart)
	if len(domainPart) > 3 {
		maskedDomain = string(domainPart[:1]) +
			strings.Repeat("*", max(2, len(domainPart)-2)) +
			string(domainPart[len(domainPart)-1:])
	}

	return masked + "@" + maskedDomain
}
