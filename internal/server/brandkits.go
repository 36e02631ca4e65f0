package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nightlifeflyers/flyerstudio/internal/brandkit"
)

// DefaultPaletteSize is used when a kit is extracted without an explicit size.
const DefaultPaletteSize = 5

// brandKitRequest creates a kit either from explicit colors or by extracting
// a palette from Source.
type brandKitRequest struct {
	Name        string            `json:"name"`
	Colors      []brandkit.Swatch `json:"colors,omitempty"`
	Fonts       []string          `json:"fonts,omitempty"`
	LogoSource  string            `json:"logoSource,omitempty"`
	Source      string            `json:"source,omitempty"`
	PaletteSize int               `json:"paletteSize,omitempty"`
	Method      string            `json:"method,omitempty"`
}

// handleBrandKits handles /api/v1/brandkits
func (s *Server) handleBrandKits(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateBrandKit(w, r)
	case http.MethodGet:
		kits, err := s.opts.Store.ListKits()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, kits)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBrandKitWithName handles /api/v1/brandkits/:name
func (s *Server) handleBrandKitWithName(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/brandkits/")
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "Brand kit name required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		kit, err := s.opts.Store.LoadKit(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, kit)
	case http.MethodDelete:
		if err := s.opts.Store.DeleteKit(name); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreateBrandKit(w http.ResponseWriter, r *http.Request) {
	var req brandKitRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	kit := &brandkit.Kit{
		Name:       strings.TrimSpace(req.Name),
		Colors:     req.Colors,
		Fonts:      req.Fonts,
		LogoSource: req.LogoSource,
		CreatedAt:  time.Now().UTC(),
	}

	if len(kit.Colors) == 0 && req.Source != "" {
		swatches, status, err := s.extractSwatches(r, req)
		if err != nil {
			if status == 0 {
				writeError(w, err)
			} else {
				http.Error(w, err.Error(), status)
			}
			return
		}
		kit.Colors = swatches
	}

	if err := kit.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.opts.Store.SaveKit(kit); err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Brand kit saved", "name", kit.Name, "colors", len(kit.Colors))
	writeJSON(w, http.StatusCreated, kit)
}

// extractSwatches builds a palette from req.Source. A non-zero status marks
// a client error; otherwise the error is mapped by writeError.
func (s *Server) extractSwatches(r *http.Request, req brandKitRequest) ([]brandkit.Swatch, int, error) {
	size := req.PaletteSize
	if size == 0 {
		size = DefaultPaletteSize
	}
	if size < 1 || size > brandkit.MaxColors {
		return nil, http.StatusBadRequest, fmt.Errorf("paletteSize must be in [1, %d]", brandkit.MaxColors)
	}
	method := brandkit.MethodDominantColor
	if req.Method != "" {
		m, err := brandkit.ParseMethod(req.Method)
		if err != nil {
			return nil, http.StatusBadRequest, err
		}
		method = m
	}

	buf, err := s.opts.Loader.Load(r.Context(), req.Source)
	if err != nil {
		return nil, 0, err
	}
	swatches, err := brandkit.ExtractPalette(buf.Image(), size, method)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to extract palette: %w", err)
	}
	return swatches, 0, nil
}
