package vista

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var leadValidate = validator.New(validator.WithRequiredStructEnabled())

// LeadInput is a lead submission from the application.
type LeadInput struct {
	Name         string `json:"name" validate:"required,min=2"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone" validate:"omitempty,min=8"`
	Message      string `json:"message" validate:"omitempty,max=4000"`
	PropertyCode string `json:"propertyCode" validate:"omitempty,max=32"`
	Source       string `json:"source" validate:"omitempty,max=64"`
}

// LeadResult is the normalized outcome of a lead submission. Failures are a
// value, not an error: the UI acts on them directly.
type LeadResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	LeadID  string   `json:"leadId,omitempty"`
}

// CreateLead validates and submits a lead. Only authentication failure and
// total upstream unavailability surface as errors; upstream rejections come
// back as a structured failed result.
func (p *Provider) CreateLead(ctx context.Context, in LeadInput) (LeadResult, error) {
	if err := leadValidate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return LeadResult{Success: false, Message: "invalid lead input", Errors: msgs}, nil
		}
		return LeadResult{Success: false, Message: "invalid lead input", Errors: []string{err.Error()}}, nil
	}

	leadID := uuid.NewString()
	payload := map[string]any{
		"lead": map[string]any{
			"referencia": leadID,
			"nome":       in.Name,
			"email":      in.Email,
			"telefone":   in.Phone,
			"mensagem":   in.Message,
			"imovel":     in.PropertyCode,
			"origem":     orDefault(in.Source, "site"),
		},
	}

	raw, err := p.client.SendLead(ctx, payload)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return LeadResult{}, err
		}
		var se *StatusError
		if errors.As(err, &se) && se.Status < 500 {
			// business rejection: actionable by the caller, not an outage
			return LeadResult{Success: false, Message: se.Message, LeadID: leadID}, nil
		}
		return LeadResult{}, fmt.Errorf("create lead: %w", err)
	}

	var env leadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// upstream answered 2xx with an undecodable body; treat as accepted
		return LeadResult{Success: true, LeadID: leadID}, nil
	}
	res := LeadResult{
		Success: leadAccepted(env),
		Message: env.Message,
		Errors:  env.Errors,
		LeadID:  leadID,
	}
	return res, nil
}

func leadAccepted(env leadEnvelope) bool {
	if env.Success != nil {
		return *env.Success
	}
	if len(env.Errors) > 0 {
		return false
	}
	s := strings.Trim(string(env.Status), `"`)
	switch strings.ToLower(s) {
	case "", "200", "ok", "success", "sucesso":
		return true
	}
	return false
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
