package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xhad/resumatch/internal/types"
	"github.com/xhad/resumatch/pkg/matcher"
	"github.com/xhad/resumatch/pkg/session"
)

// multipartMemory is how much of a form is held in memory before spilling
// to disk.
const multipartMemory = 8 << 20

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.BodyLimit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: %v", matcher.ErrInvalidInput, err)
		}
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: file is required", matcher.ErrInvalidInput))
		return
	}
	defer file.Close()

	st, err := s.sessions.Get(strings.TrimSpace(r.FormValue("session_id")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.matcher.IngestFile(r.Context(), st, header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.IngestResponse{
		Filename:    res.Binding.Filename,
		ChunksAdded: res.ChunksAdded,
		Status:      "success",
		SessionID:   res.Binding.SessionID,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.BodyLimit)

	var req types.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = fmt.Errorf("%w: invalid JSON body: %v", matcher.ErrInvalidInput, err)
		}
		s.writeError(w, r, err)
		return
	}

	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %s", matcher.ErrInvalidInput, describeValidation(err)))
		return
	}
	if err := session.ValidateID(req.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, ok := s.sessions.Lookup(req.SessionID)
	if !ok {
		s.writeError(w, r, matcher.ErrNoResume)
		return
	}

	jobDescription, err := s.matcher.ResolveJobDescription(r.Context(), req.JobDescription, req.JobURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	analysis, err := s.matcher.Analyze(r.Context(), st, jobDescription)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := types.AnalyzeResponse{
		MatchAnalysis: analysis.Critique.Text,
		ContextUsed:   analysis.ContextUsed,
		MatchScore:    analysis.Critique.Score,
		Status:        analysis.Status(),
	}
	if f := analysis.Critique.Failure; f != nil {
		resp.ErrorKind = string(f.Kind)
	}
	writeJSON(w, http.StatusOK, resp)
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", fe.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
