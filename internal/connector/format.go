package connector

import "github.com/devamsheth0806/VeriMeet/internal/session"

func factBadge(f session.Fact) string {
	if f.Status == session.VerificationVerified {
		return "VERIFIED"
	}
	return "NEEDS VERIFICATION"
}
