package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
)

// writeEnvelope writes the response contract every endpoint shares: the
// payload is written verbatim if it already carries a "status" key (e.g. the
// burned/login/logout responses, which use "status":"burned" etc.),
// otherwise it is embedded under "data" alongside the given status. One
// function covers both the success and failure paths.
func writeEnvelope(w http.ResponseWriter, code int, status string, data interface{}) {
	w.Header().Set("Server", "accountbroker")
	w.Header().Set("Content-Type", "application/json")

	var body map[string]interface{}
	if data != nil {
		raw, err := json.Marshal(data)
		if err == nil {
			var generic map[string]interface{}
			if err := json.Unmarshal(raw, &generic); err == nil {
				if _, hasStatus := generic["status"]; hasStatus {
					body = generic
				}
			}
		}
	}
	if body == nil {
		body = map[string]interface{}{"status": status}
		if data != nil {
			body["data"] = data
		}
	}

	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// writeOK writes a 200 success envelope.
func writeOK(w http.ResponseWriter, data interface{}) {
	writeEnvelope(w, http.StatusOK, "ok", data)
}

// writeNoContent writes a bare 204 with no body, used for the "softban
// recorded" response.
func writeNoContent(w http.ResponseWriter) {
	w.Header().Set("Server", "accountbroker")
	w.WriteHeader(http.StatusNoContent)
}

// writeNoCandidate writes the documented "no accounts available" response
// with status 204 (spec.md §7's NoCandidate contract). net/http sends no
// body with a 204, so the JSON error body is dropped and the failed write is
// logged; clients see only the status.
func writeNoCandidate(w http.ResponseWriter) {
	w.Header().Set("Server", "accountbroker")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNoContent)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": "No accounts available"}); err != nil {
		log.Printf("[http] failed to encode response: %v", err)
	}
}

// writeFail writes a failure envelope at the given status code (default
// 400).
func writeFail(w http.ResponseWriter, code int, data interface{}) {
	if code == 0 {
		code = http.StatusBadRequest
	}
	writeEnvelope(w, code, "fail", data)
}
