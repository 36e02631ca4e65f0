package server

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nightlifeflyers/flyerstudio/internal/backdrop"
	"github.com/nightlifeflyers/flyerstudio/internal/chroma"
	"github.com/nightlifeflyers/flyerstudio/internal/composite"
	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

type sourceRequest struct {
	Source string `json:"source"`
}

type cleanupRequest struct {
	Source string        `json:"source"`
	Params cutout.Params `json:"params"`
}

type imageResponse struct {
	Image  string   `json:"image"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	Stages []string `json:"stages,omitempty"`
}

// handleCleanup handles POST /api/v1/cleanup. Omitted params keep their
// identity values.
func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	req := cleanupRequest{Params: cutout.DefaultParams()}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		http.Error(w, "source is required", http.StatusBadRequest)
		return
	}

	params := req.Params.Clamp()
	var p cutout.Pipeline
	buf, err := p.Process(r.Context(), s.opts.Loader, req.Source, params)
	if err != nil {
		writeError(w, err)
		return
	}
	uri, err := raster.EncodeDataURI(buf)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{
		Image:  uri,
		Width:  buf.Width,
		Height: buf.Height,
		Stages: params.Plan().Stages(),
	})
}

// handleChromaKey handles POST /api/v1/chromakey. It never fails on bad
// input: the source comes back unchanged.
func (s *Server) handleChromaKey(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req sourceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Image: chroma.KeySource(r.Context(), s.opts.Loader, req.Source)})
}

// handleMood handles POST /api/v1/mood. It always answers with a signal.
func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req sourceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Mood.Extract(r.Context(), req.Source))
}

type blendRequest struct {
	Background string              `json:"background"`
	Subject    string              `json:"subject"`
	Placement  composite.Placement `json:"placement"`
}

// handleBlend handles POST /api/v1/blend.
func (s *Server) handleBlend(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	req := blendRequest{Placement: composite.DefaultPlacement()}
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Background == "" || req.Subject == "" {
		http.Error(w, "background and subject are required", http.StatusBadRequest)
		return
	}

	var bg, subject *raster.Buffer
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		bg, err = s.opts.Loader.Load(ctx, req.Background)
		return err
	})
	g.Go(func() (err error) {
		subject, err = s.opts.Loader.Load(ctx, req.Subject)
		return err
	})
	if err := g.Wait(); err != nil {
		writeError(w, err)
		return
	}

	out, err := composite.Blend(bg, subject, req.Placement)
	if err != nil {
		writeError(w, err)
		return
	}
	uri, err := raster.EncodeDataURI(out)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResponse{Image: uri, Width: out.Width, Height: out.Height})
}

type backdropResponse struct {
	Image       string `json:"image"`
	MimeType    string `json:"mimeType"`
	Seed        int64  `json:"seed"`
	StylePrompt string `json:"stylePrompt,omitempty"`
}

// handleBackdrops handles POST /api/v1/backdrops.
func (s *Server) handleBackdrops(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.opts.Backdrops == nil {
		http.Error(w, "Backdrop generation is not configured", http.StatusServiceUnavailable)
		return
	}
	var req backdrop.Request
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	if req.AspectRatio != "" {
		if err := backdrop.ValidateAspectRatio(req.AspectRatio); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.Seed != nil {
		if err := backdrop.ValidateSeed(*req.Seed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	img, err := s.opts.Backdrops.Generate(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, r.Context().Err()) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, backdropResponse{
		Image:       img.DataURI(),
		MimeType:    img.MimeType,
		Seed:        img.UsedSeed,
		StylePrompt: img.StylePrompt,
	})
}
