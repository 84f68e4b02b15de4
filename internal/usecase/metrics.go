package usecase

// CredentialMetrics captures telemetry hooks for the credential flows.
type CredentialMetrics interface {
	IncOTPIssued(purpose string)
	IncOTPVerify(purpose, outcome string)
	IncLogin(reason string)
	IncAccountStateLookup(hit bool)
}

// OTP verification outcomes reported to CredentialMetrics.
const (
	otpOutcomeVerified = "verified"
	otpOutcomeInvalid  = "invalid"
	otpOutcomeLocked   = "locked"
)

type noopMetrics struct{}

func (noopMetrics) IncOTPIssued(string)         {}
func (noopMetrics) IncOTPVerify(string, string) {}
func (noopMetrics) IncLogin(string)             {}
func (noopMetrics) IncAccountStateLookup(bool)  {}
