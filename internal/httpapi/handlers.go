package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"subgen/internal/fetch"
	"subgen/internal/pipeline"
	"subgen/internal/userstore"
)

type submitRequest struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Link         string `json:"link"`
	TargetLang   string `json:"target_language"`
	LanguageHint string `json:"language_hint"`
	Mode         string `json:"mode"`
	Resolution   string `json:"resolution"`
}

func (s *Server) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Link == "" {
		writeError(w, http.StatusBadRequest, "link is required")
		return
	}

	user, err := s.users.EnsureUser(r.Context(), req.UserID, req.Username, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	mode := pipeline.ModeBurn
	switch req.Mode {
	case "", "burn":
	case "display":
		mode = pipeline.ModeDisplay
	case "transcribe":
		mode = pipeline.ModeTranscribe
	default:
		writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	target := req.TargetLang
	if target == "" {
		target = user.Settings.Language
	}
	if target == "" {
		target = pipeline.TargetOriginal
	}
	resolution := req.Resolution
	if resolution == "" {
		resolution = user.Settings.Resolution
	}

	job, err := s.jobs.Submit(r.Context(), pipeline.Request{
		UserID:   req.UserID,
		Username: req.Username,
		Name:     req.Name,
		Link:     req.Link,
		Selection: fetch.Selection{
			Resolution:     resolution,
			TranscribeOnly: mode == pipeline.ModeTranscribe,
		},
		TargetLanguage: target,
		LanguageHint:   req.LanguageHint,
		Mode:           mode,
		Settings:       user.Settings,
	})
	if err != nil {
		var pe *pipeline.PipelineError
		if errors.As(err, &pe) && pe.Kind == pipeline.FailureAdmissionRejected {
			writeError(w, http.StatusConflict, pe.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, pipeline.MessageOf(err))
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.Jobs())
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.GetJob(mux.Vars(r)["id"])
	if job == nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, user.Settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings userstore.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.users.UpdateSettings(r.Context(), id, settings); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	records, err := s.users.RecentRequests(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
