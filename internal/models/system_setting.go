package models

import "time"

// Setting keys read by the reconciliation services.
const (
	SettingCardsPerTurn = "cards_per_turn"
)

type SystemSetting struct {
	ID           int       `json:"id"`
	SettingKey   string    `json:"setting_key"`
	SettingValue string    `json:"setting_value"`
	Description  string    `json:"description"`
	UpdatedAt    time.Time `json:"updated_at"`
	UpdatedBy    string    `json:"updated_by"`
}

type UpdateSettingRequest struct {
	SettingValue string `json:"setting_value"`
}

// CalcParams carries the per-request tunables resolved once before a calculation.
type CalcParams struct {
	CardsPerTurn int
}
