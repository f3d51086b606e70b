package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/domizei385/pogoAccountServer/internal/engine"
	"github.com/domizei385/pogoAccountServer/internal/model"
)

// rateLimited checks the per-device token bucket, writing a 429-shaped fail
// response and returning false if the device is over its budget.
func (s *Server) rateLimited(w http.ResponseWriter, device string) bool {
	if s.limiter.Allow(device) {
		return false
	}
	writeFail(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	return true
}

// handleEngineError maps an engine error to its documented HTTP response.
func handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrBadRequest):
		writeFail(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, engine.ErrNoCandidate):
		writeNoCandidate(w)
	case errors.Is(err, engine.ErrNoBinding):
		writeOK(w, nil)
	case errors.Is(err, engine.ErrIgnored):
		writeOK(w, nil)
	default:
		writeFail(w, http.StatusInternalServerError, map[string]string{"status": "fail"})
	}
}

func accountResponseJSON(a *engine.AccountResponse) map[string]interface{} {
	body := map[string]interface{}{
		"username":             a.Username,
		"password":             a.Password,
		"level":                a.Level,
		"remaining_encounters": a.RemainingEncounters,
		"is_burnt":             a.IsBurnt,
	}
	if a.LastReturned != nil {
		body["last_returned"] = *a.LastReturned
	}
	if a.LastReason != nil {
		body["last_reason"] = *a.LastReason
	}
	if a.SoftbanTime != nil {
		softban := map[string]interface{}{"time": *a.SoftbanTime}
		if a.SoftbanLocation != nil {
			softban["location"] = a.SoftbanLocation
		}
		body["softban_info"] = softban
	}
	return body
}

func (s *Server) handleGetAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	device := q.Get("device")
	purpose := q.Get("purpose")
	region := q.Get("region")

	if device == "" {
		writeFail(w, http.StatusBadRequest, map[string]string{"error": "device is required"})
		return
	}
	if s.rateLimited(w, device) {
		return
	}

	result, err := s.engine.GetAvailability(r.Context(), device, purpose, region)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"available": result.Available, "type": result.Type})
}

type getAccountRequest struct {
	Purpose  string          `json:"purpose"`
	Region   string          `json:"region,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Location *model.Location `json:"location,omitempty"`
	Logging  *bool           `json:"logging,omitempty"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	if device == "" {
		writeFail(w, http.StatusBadRequest, map[string]string{"error": "device is required"})
		return
	}
	if s.rateLimited(w, device) {
		return
	}

	var req getAccountRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFail(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
			return
		}
	}

	resp, err := s.engine.GetAccount(r.Context(), device, req.Purpose, req.Region, req.Reason, req.Location)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, accountResponseJSON(resp))
}

func (s *Server) handleGetAccountInfo(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")

	resp, err := s.engine.GetAccountInfo(r.Context(), device)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, accountResponseJSON(resp))
}

func (s *Server) handleSetLevel(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")
	levelStr := chi.URLParam(r, "level")

	level, err := strconv.Atoi(levelStr)
	if err != nil {
		writeFail(w, http.StatusBadRequest, map[string]string{"error": "level must be an integer"})
		return
	}

	if err := s.engine.SetLevel(r.Context(), device, level); err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, nil)
}

type setSoftbanRequest struct {
	Time     int64           `json:"time"`
	Location *model.Location `json:"location"`
}

func (s *Server) handleSetSoftban(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")

	var req setSoftbanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFail(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}

	if err := s.engine.SetSoftban(r.Context(), device, req.Time, req.Location); err != nil {
		handleEngineError(w, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleSetLogin(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")

	username, err := s.engine.SetLogin(r.Context(), device)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"username": username, "status": "logged in"})
}

type setLogoutRequest struct {
	Encounters *int `json:"encounters,omitempty"`
	Level      *int `json:"level,omitempty"`
}

func (s *Server) handleSetLogout(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")

	var req setLogoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFail(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
			return
		}
	}

	username, err := s.engine.SetLogout(r.Context(), device, req.Encounters, req.Level)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"username": username, "status": "logged out"})
}

type setBurnedRequest struct {
	Reason     string `json:"reason,omitempty"`
	Encounters *int   `json:"encounters,omitempty"`
	Level      *int   `json:"level,omitempty"`
}

func (s *Server) handleSetBurned(w http.ResponseWriter, r *http.Request) {
	device := chi.URLParam(r, "device")

	var req setBurnedRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeFail(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
			return
		}
	}

	username, err := s.engine.SetBurned(r.Context(), device, req.Reason, req.Encounters, req.Level)
	if err != nil {
		handleEngineError(w, err)
		return
	}
	writeOK(w, map[string]interface{}{"username": username, "status": "burned"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "stats"
	if cached, ok := s.statsCache.Get(cacheKey); ok {
		writeOK(w, cached)
		return
	}

	stats, err := s.engine.Stats(r.Context())
	if err != nil {
		handleEngineError(w, err)
		return
	}

	shaped := make(map[string]interface{}, len(stats))
	for region, rs := range stats {
		shaped[region] = map[string]interface{}{
			"total": map[string]interface{}{
				"accounts":  rs.TotalAccounts,
				"in_use":    rs.InUse,
				"cooldown":  rs.Cooldown,
				"unleveled": rs.Unleveled,
			},
			"available": map[string]interface{}{
				"total":     rs.AvailTotal,
				"leveled":   rs.AvailLeveled,
				"unleveled": rs.AvailUnleveled,
			},
		}
	}

	s.statsCache.Set(cacheKey, shaped)
	writeOK(w, shaped)
}

// handleTest is the diagnostic endpoint: it reports whether the database is
// reachable, which is the one dependency that can silently fail between
// requests.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if err := s.pingDB(r); err != nil {
		writeFail(w, http.StatusInternalServerError, map[string]string{"database": "unreachable"})
		return
	}
	writeOK(w, map[string]string{"database": "reachable"})
}

func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	writeFail(w, http.StatusBadRequest, map[string]string{"error": "Unhandled request"})
}
