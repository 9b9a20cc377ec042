package api

import "time"

// TokenRequest represents the request payload for client authentication
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// TokenResponse represents the response payload for client authentication
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// GenerateLetterRequest asks for a reply to a user's letter
type GenerateLetterRequest struct {
	UserID     string `json:"user_id"`
	UserLetter string `json:"user_letter"`
	TaskID     string `json:"task_id,omitempty"`
}

// GenerateLetterResponse carries the stored letter and its reply
type GenerateLetterResponse struct {
	LetterID                string `json:"letter_id"`
	UserLetter              string `json:"user_letter"`
	GeneratedResponseLetter string `json:"generated_response_letter"`
}

// RealtimeStatusResponse describes the websocket endpoints and their load
type RealtimeStatusResponse struct {
	Status             string            `json:"status"`
	AvailableEndpoints map[string]string `json:"available_endpoints"`
	ActiveConnections  map[string]int    `json:"active_connections"`
	ActiveRelays       int               `json:"active_relays"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
