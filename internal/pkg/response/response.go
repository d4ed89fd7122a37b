package response

import (
	"encoding/json"
	"net/http"
)

// Failure is the error envelope shared by all endpoints.
type Failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Can't change response at this point, just log
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		}
	}
}

// Fail writes a {success:false} envelope with the given message
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Failure{Success: false, Message: message})
}

// Success writes a 200 OK response
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}
