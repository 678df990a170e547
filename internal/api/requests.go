package api

import (
	"fmt"
	"strings"

	dErrors "phonecheck/pkg/domain-errors"
)

const (
	maxNumberLen   = 32
	maxLabelLen    = 200
	maxTemplateLen = 320
)

func validateNumber(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "phone_number is required")
	}
	if len(raw) > maxNumberLen {
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("phone_number must be at most %d characters", maxNumberLen))
	}
	return raw, nil
}

// LookupRequest is the body for POST /api/phone/lookup.
type LookupRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (r *LookupRequest) Validate() error {
	n, err := validateNumber(r.PhoneNumber)
	r.PhoneNumber = n
	return err
}

// SafelistRequest is the body for POST /api/safelist.
type SafelistRequest struct {
	PhoneNumber string `json:"phone_number"`
	Label       string `json:"label"`
}

func (r *SafelistRequest) Validate() error {
	n, err := validateNumber(r.PhoneNumber)
	if err != nil {
		return err
	}
	r.PhoneNumber = n
	r.Label = strings.TrimSpace(r.Label)
	if r.Label == "" {
		return dErrors.New(dErrors.CodeValidation, "label is required")
	}
	if len(r.Label) > maxLabelLen {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("label must be at most %d characters", maxLabelLen))
	}
	return nil
}

// BlacklistRequest is the body for POST /api/blacklist. Reason length is
// checked by the blacklist service.
type BlacklistRequest struct {
	PhoneNumber string `json:"phone_number"`
	Reason      string `json:"reason"`
	AddedBy     string `json:"added_by,omitempty"`
}

func (r *BlacklistRequest) Validate() error {
	n, err := validateNumber(r.PhoneNumber)
	r.PhoneNumber = n
	r.AddedBy = strings.TrimSpace(r.AddedBy)
	return err
}

// OTPSendRequest is the body for POST /api/otp/send.
type OTPSendRequest struct {
	PhoneNumber     string `json:"phone_number"`
	MessageTemplate string `json:"message_template,omitempty"`
}

func (r *OTPSendRequest) Validate() error {
	n, err := validateNumber(r.PhoneNumber)
	if err != nil {
		return err
	}
	r.PhoneNumber = n
	if len(r.MessageTemplate) > maxTemplateLen {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("message_template must be at most %d characters", maxTemplateLen))
	}
	return nil
}

// OTPVerifyRequest is the body for POST /api/otp/verify.
type OTPVerifyRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

func (r *OTPVerifyRequest) Validate() error {
	n, err := validateNumber(r.PhoneNumber)
	if err != nil {
		return err
	}
	r.PhoneNumber = n
	r.OTPCode = strings.TrimSpace(r.OTPCode)
	if r.OTPCode == "" {
		return dErrors.New(dErrors.CodeValidation, "otp_code is required")
	}
	return nil
}
