package transport

import (
	"time"

	"crm_workflow_backend/internal/notification/repository"
)

type SettingResponse struct {
	Slug          string    `json:"slug"`
	StatusName    string    `json:"statusName"`
	Enabled       bool      `json:"enabled"`
	CustomMessage string    `json:"customMessage"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func ToSettingResponse(s repository.Setting) SettingResponse {
	return SettingResponse{
		Slug:          s.Slug,
		StatusName:    s.StatusName,
		Enabled:       s.Enabled,
		CustomMessage: s.CustomMessage,
		UpdatedAt:     s.UpdatedAt,
	}
}

func ToSettingResponses(items []repository.Setting) []SettingResponse {
	out := make([]SettingResponse, 0, len(items))
	for _, s := range items {
		out = append(out, ToSettingResponse(s))
	}
	return out
}

type UpdateSettingRequest struct {
	Enabled       *bool   `json:"enabled"`
	CustomMessage *string `json:"customMessage" validate:"omitempty,max=4000"`
}

type PaymentSettingsRequest struct {
	Instructions string `json:"instructions" validate:"max=4000"`
}

type PaymentSettingsResponse struct {
	Instructions string `json:"instructions"`
}
