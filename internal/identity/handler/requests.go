package handler

import (
	"vendry/internal/identity/models"
	"vendry/internal/identity/service"
	dErrors "vendry/pkg/domain-errors"
)

type otpRequestBody struct {
	Method     string `json:"method"`
	Value      string `json:"value"`
	Flow       string `json:"flow"`
	Name       string `json:"name,omitempty"`
	RoleIntent string `json:"role_intent,omitempty"`
}

func (b otpRequestBody) toDomain() (service.OTPRequest, error) {
	method, err := parseMethod(b.Method)
	if err != nil {
		return service.OTPRequest{}, err
	}
	flow, err := parseFlow(b.Flow)
	if err != nil {
		return service.OTPRequest{}, err
	}
	intent, err := parseRoleIntent(b.RoleIntent)
	if err != nil {
		return service.OTPRequest{}, err
	}
	return service.OTPRequest{
		Method:     method,
		Value:      b.Value,
		Flow:       flow,
		Name:       b.Name,
		RoleIntent: intent,
	}, nil
}

type otpVerifyBody struct {
	Method string `json:"method"`
	Value  string `json:"value"`
	Code   string `json:"code"`
}

type otpCancelBody struct {
	Method string `json:"method"`
	Value  string `json:"value"`
}

type modeBody struct {
	Mode string `json:"mode"`
}

func parseMethod(raw string) (models.OTPMethod, error) {
	switch models.OTPMethod(raw) {
	case models.OTPMethodPhone, models.OTPMethodEmail:
		return models.OTPMethod(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "method must be phone or email")
	}
}

func parseFlow(raw string) (models.OTPFlow, error) {
	if raw == "" {
		return models.OTPFlowLogin, nil
	}
	switch models.OTPFlow(raw) {
	case models.OTPFlowLogin, models.OTPFlowSignup:
		return models.OTPFlow(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "flow must be login or signup")
	}
}

func parseRoleIntent(raw string) (models.Role, error) {
	switch models.Role(raw) {
	case models.RoleNone, models.RoleCustomer, models.RoleVendor:
		return models.Role(raw), nil
	default:
		return models.RoleNone, dErrors.New(dErrors.CodeInvalidInput, "role_intent must be customer or vendor")
	}
}

func parseMode(raw string) (models.ActiveMode, error) {
	switch models.ActiveMode(raw) {
	case models.ModeCustomer, models.ModeVendor:
		return models.ActiveMode(raw), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "mode must be customer or vendor")
	}
}
