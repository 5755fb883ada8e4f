package entities

import (
	"bytes"
	"encoding/json"
)

// VerificationStep is the position in the organization → identity → complete flow.
type VerificationStep string

const (
	StepUnknown      VerificationStep = ""
	StepNotStarted   VerificationStep = "not_started"
	StepOrganization VerificationStep = "organization"
	StepIdentity     VerificationStep = "identity"
	StepComplete     VerificationStep = "complete"
)

// Pending action tags
const (
	ActionVerifyOrganizationEmail = "VERIFY_ORGANIZATION_EMAIL"
	ActionVerifyIdentity          = "VERIFY_IDENTITY"
)

// UnmarshalJSON accepts null and unknown strings as StepUnknown; the
// derivation resolves the real step from the flags.
func (s *VerificationStep) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = StepUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch VerificationStep(raw) {
	case StepNotStarted, StepOrganization, StepIdentity, StepComplete:
		*s = VerificationStep(raw)
	default:
		*s = StepUnknown
	}
	return nil
}

// VerificationStatus mirrors the backend's verification object.
type VerificationStatus struct {
	IsFullyVerified             bool             `json:"isFullyVerified"`
	IsIdentityVerified          bool             `json:"isIdentityVerified"`
	IsOrganizationEmailVerified bool             `json:"isOrganizationEmailVerified"`
	CanBuy                      bool             `json:"canBuy"`
	CanList                     bool             `json:"canList"`
	CanSell                     bool             `json:"canSell"`
	CanContact                  bool             `json:"canContact"`
	CurrentStep                 VerificationStep `json:"currentStep"`
	PendingActions              []string         `json:"pendingActions"`
}

// DeriveVerificationStatus recomputes every capability flag from the two
// verification facts. canSell implies both verifications.
func DeriveVerificationStatus(v VerificationStatus) VerificationStatus {
	org := v.IsOrganizationEmailVerified
	identity := v.IsIdentityVerified
	full := org && identity

	out := VerificationStatus{
		IsFullyVerified:             full,
		IsIdentityVerified:          identity,
		IsOrganizationEmailVerified: org,
		CanBuy:                      org,
		CanContact:                  org,
		CanList:                     full,
		CanSell:                     full,
		PendingActions:              []string{},
	}

	if !org {
		out.PendingActions = append(out.PendingActions, ActionVerifyOrganizationEmail)
	}
	if !identity {
		out.PendingActions = append(out.PendingActions, ActionVerifyIdentity)
	}

	switch {
	case full:
		out.CurrentStep = StepComplete
	case org:
		out.CurrentStep = StepIdentity
	case identity:
		out.CurrentStep = StepOrganization
	case v.CurrentStep == StepOrganization || v.CurrentStep == StepIdentity:
		// the backend reports the flow as started without any flag yet
		out.CurrentStep = StepOrganization
	default:
		out.CurrentStep = StepNotStarted
	}
	return out
}

// DefaultVerificationStatus is used when no authoritative status is available.
func DefaultVerificationStatus() VerificationStatus {
	return DeriveVerificationStatus(VerificationStatus{})
}

func (v VerificationStatus) IsComplete() bool {
	return v.CurrentStep == StepComplete
}
