package dto

import "github.com/LeBoy2525/assist-backend/internal/models"

// ErrorResponse стандартный ответ с ошибкой.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse стандартный успешный ответ.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MissionResponse миссия с вычисленным витринным статусом.
type MissionResponse struct {
	models.Mission
	PublicStatus string `json:"public_status"`
}

// NewMissionResponse строит ответ по миссии.
func NewMissionResponse(m *models.Mission) MissionResponse {
	return MissionResponse{
		Mission:      *m,
		PublicStatus: m.PublicStatus(),
	}
}

// NewMissionListResponse строит список ответов по миссиям.
func NewMissionListResponse(missions []models.Mission) []MissionResponse {
	out := make([]MissionResponse, 0, len(missions))
	for i := range missions {
		out = append(out, NewMissionResponse(&missions[i]))
	}
	return out
}

// MatchResponse результат подбора, разделённый по совпадению специальности.
type MatchResponse struct {
	Suggested []models.MatchResult `json:"suggested"`
	Others    []models.MatchResult `json:"others"`
}
