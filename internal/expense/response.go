package expense

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	codeValidation = "VALIDATION_ERROR"
	codeNotFound   = "NOT_FOUND"
	codeInternal   = "INTERNAL_SERVER_ERROR"

	messageInvalidRequest = "Invalid request data"
	messageUnexpected     = "An unexpected error occurred"
)

type errorBody struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type fieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"data": data})
}

func writeValidation(w http.ResponseWriter, details []fieldError) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Status:  http.StatusBadRequest,
		Error:   codeValidation,
		Message: messageInvalidRequest,
		Details: details,
	})
}

func writeNotFound(w http.ResponseWriter, id int64) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Status:  http.StatusNotFound,
		Error:   codeNotFound,
		Message: "Expense category with id " + strconv.FormatInt(id, 10) + " not found",
		Details: map[string]int64{"id": id},
	})
}
