package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/IlyassOtmani/car-price-ml/internal/form"
	"github.com/IlyassOtmani/car-price-ml/internal/presets"
)

// handleIndex renders the page with the defaults, or with a preset's
// values when ?preset= names one.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := form.PageData{Request: s.deps.Form.Defaults()}
	status := http.StatusOK

	if id := r.URL.Query().Get("preset"); id != "" {
		p, err := s.deps.Presets.Get(id)
		switch {
		case err == nil:
			data.Request = p.Request
		case errors.Is(err, presets.ErrNotFound):
			status = http.StatusNotFound
			data.Error = "Unknown preset: " + id
		default:
			status = http.StatusInternalServerError
			data.Error = err.Error()
		}
	}
	s.renderPage(w, status, data)
}

// handlePredictForm scores a submitted form and re-renders the page with the
// price or the error in place of the output.
func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderPage(w, http.StatusBadRequest, form.PageData{Request: s.deps.Form.Defaults(), Error: err.Error()})
		return
	}

	req, err := s.deps.Form.Parse(r.PostForm)
	if err != nil {
		data := form.PageData{Request: req, Error: err.Error()}
		var verr *form.ValidationError
		if errors.As(err, &verr) {
			data.Fields = make(map[string]string, len(verr.Fields))
			for _, fe := range verr.Fields {
				data.Fields[fe.Field] = fe.Message
			}
		}
		s.renderPage(w, http.StatusBadRequest, data)
		return
	}

	res, err := s.deps.Predictor.PredictRequest(r.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("request_id", res.ID).Msg("Prediction failed")
		s.renderPage(w, http.StatusInternalServerError, form.PageData{Request: req, Error: "Error: " + err.Error()})
		return
	}
	s.renderPage(w, http.StatusOK, form.PageData{Request: req, Result: res.Price})
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data form.PageData) {
	data.Version = s.cfg.Version
	data.Presets = s.pagePresets()

	var buf bytes.Buffer
	if err := s.deps.Form.Render(&buf, data); err != nil {
		log.Error().Err(err).Msg("Error rendering page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) pagePresets() []form.Preset {
	list, err := s.deps.Presets.List()
	if err != nil {
		log.Warn().Err(err).Msg("Could not list presets")
		return nil
	}
	out := make([]form.Preset, len(list))
	for i, p := range list {
		out[i] = form.Preset{ID: p.ID, Title: p.Title, Builtin: p.Builtin, Request: p.Request}
	}
	return out
}
