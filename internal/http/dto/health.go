package dto

type HealthResponse struct {
	Status     string            `json:"status"` // ready | unavailable
	Code       string            `json:"code,omitempty"`
	Message    string            `json:"message,omitempty"`
	Components map[string]string `json:"components"`
}
