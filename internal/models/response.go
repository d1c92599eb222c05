package models

// ErrorResponse is the standard JSON error body returned by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}
