package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightlifeflyers/flyerstudio/internal/backdrop"
	"github.com/nightlifeflyers/flyerstudio/internal/brandkit"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

type mockBackdrops struct {
	generateFunc func(req backdrop.Request) (*backdrop.Image, error)
}

func (m *mockBackdrops) Generate(ctx context.Context, req backdrop.Request) (*backdrop.Image, error) {
	return m.generateFunc(req)
}

func solidURI(t *testing.T, w, h int, r, g, b, a uint8) string {
	t.Helper()
	buf := raster.NewBuffer(w, h)
	for i := 0; i < len(buf.Pix); i += 4 {
		buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2], buf.Pix[i+3] = r, g, b, a
	}
	uri, err := raster.EncodeDataURI(buf)
	require.NoError(t, err)
	return uri
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func loadURI(t *testing.T, uri string) *raster.Buffer {
	t.Helper()
	buf, err := raster.NewLoader("").Load(context.Background(), uri)
	require.NoError(t, err)
	return buf
}

func TestHandleCleanup(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	buf := raster.NewBuffer(12, 8)
	for y := 2; y < 6; y++ {
		for x := 3; x < 9; x++ {
			i := buf.Offset(x, y)
			buf.Pix[i], buf.Pix[i+3] = 200, 255
		}
	}
	src, err := raster.EncodeDataURI(buf)
	require.NoError(t, err)

	w := post(t, h, "/api/v1/cleanup", map[string]any{
		"source": src,
		"params": map[string]any{"featherPx": 2},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[imageResponse](t, w)
	assert.True(t, strings.HasPrefix(resp.Image, raster.PNGDataURIPrefix))
	assert.Equal(t, 12, resp.Width)
	assert.Equal(t, 8, resp.Height)
	assert.Equal(t, []string{"feather"}, resp.Stages)

	out := loadURI(t, resp.Image)
	assert.Less(t, out.Pix[out.Offset(3, 2)+3], uint8(255), "edge alpha should be feathered")
	assert.Zero(t, out.Pix[out.Offset(0, 0)+3])
}

func TestHandleCleanup_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/cleanup", map[string]any{"source": "missing.png"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decodeBody[errorResponse](t, w).Error, "missing.png")

	w = post(t, h, "/api/v1/cleanup", map[string]any{"params": map[string]any{"shrinkPx": 1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleCleanup_PathOutsideRoot(t *testing.T) {
	s, dir := newTestServer(t)
	h := s.Handler()

	outside := filepath.Join(filepath.Dir(dir), filepath.Base(dir)+"-private.png")
	createTestImage(t, outside)
	t.Cleanup(func() { os.Remove(outside) })

	for _, src := range []string{outside, "../" + filepath.Base(outside)} {
		w := post(t, h, "/api/v1/cleanup", map[string]any{"source": src})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, src)
		assert.Contains(t, decodeBody[errorResponse](t, w).Error, "outside the source root")
	}
}

func TestHandleChromaKey(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/chromakey", sourceRequest{Source: solidURI(t, 4, 4, 20, 200, 20, 255)})
	require.Equal(t, http.StatusOK, w.Code)
	keyed := loadURI(t, decodeBody[imageResponse](t, w).Image)
	assert.Zero(t, keyed.OpaqueCount())

	// Failures hand the source back untouched.
	w = post(t, h, "/api/v1/chromakey", sourceRequest{Source: "missing.png"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "missing.png", decodeBody[imageResponse](t, w).Image)
}

func TestHandleMood(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/mood", sourceRequest{Source: "missing.png"})
	require.Equal(t, http.StatusOK, w.Code)
	var fallback map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fallback))
	assert.Nil(t, fallback["blurredReference"])
	assert.NotEmpty(t, fallback["stylePrompt"])

	w = post(t, h, "/api/v1/mood", sourceRequest{Source: solidURI(t, 16, 16, 180, 20, 140, 255)})
	require.Equal(t, http.StatusOK, w.Code)
	var sig map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&sig))
	assert.NotNil(t, sig["blurredReference"])
}

func TestHandleBlend(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/blend", map[string]any{
		"background": solidURI(t, 10, 10, 0, 0, 255, 255),
		"subject":    solidURI(t, 4, 4, 255, 0, 0, 255),
		"placement":  map[string]any{"x": 2, "y": 3},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[imageResponse](t, w)
	assert.Equal(t, 10, resp.Width)
	out := loadURI(t, resp.Image)

	inside := out.Offset(3, 4)
	assert.InDelta(t, 255, int(out.Pix[inside]), 2)
	assert.InDelta(t, 0, int(out.Pix[inside+2]), 2)
	outside := out.Offset(0, 0)
	assert.Equal(t, []uint8{0, 0, 255, 255}, out.Pix[outside:outside+4])
}

func TestHandleBlend_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/blend", map[string]any{"background": solidURI(t, 2, 2, 0, 0, 0, 255)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, h, "/api/v1/blend", map[string]any{
		"background": solidURI(t, 2, 2, 0, 0, 0, 255),
		"subject":    "missing.png",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleBackdrops(t *testing.T) {
	s, _ := newTestServer(t)

	var got backdrop.Request
	s.opts.Backdrops = &mockBackdrops{generateFunc: func(req backdrop.Request) (*backdrop.Image, error) {
		got = req
		return &backdrop.Image{Data: []byte{1, 2, 3}, MimeType: "image/png", UsedSeed: 7, StylePrompt: "moody"}, nil
	}}
	h := s.Handler()

	w := post(t, h, "/api/v1/backdrops", map[string]any{"prompt": "laser fog", "aspectRatio": "9:16", "seed": 7})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[backdropResponse](t, w)
	assert.Equal(t, "data:image/png;base64,AQID", resp.Image)
	assert.Equal(t, int64(7), resp.Seed)
	assert.Equal(t, "moody", resp.StylePrompt)
	assert.Equal(t, "laser fog", got.Prompt)
	require.NotNil(t, got.Seed)
	assert.Equal(t, int64(7), *got.Seed)
}

func TestHandleBackdrops_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	s.opts.Backdrops = &mockBackdrops{generateFunc: func(req backdrop.Request) (*backdrop.Image, error) {
		return nil, errors.New("quota exceeded")
	}}
	h := s.Handler()

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing prompt", map[string]any{"aspectRatio": "1:1"}, http.StatusBadRequest},
		{"bad aspect", map[string]any{"prompt": "x", "aspectRatio": "7:3"}, http.StatusBadRequest},
		{"seed over 32 bits", map[string]any{"prompt": "x", "seed": int64(5_000_000_000)}, http.StatusBadRequest},
		{"upstream failure", map[string]any{"prompt": "x"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, "/api/v1/backdrops", tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestBrandKitLifecycle(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/brandkits", map[string]any{
		"name":   "Friday Club",
		"colors": []map[string]any{{"hex": "#ff00aa"}, {"hex": "#101020"}},
		"fonts":  []string{"Bebas Neue"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody[brandkit.Kit](t, w)
	assert.Equal(t, "Friday Club", created.Name)
	assert.False(t, created.CreatedAt.IsZero())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/brandkits/friday-club", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Bebas Neue"}, decodeBody[brandkit.Kit](t, w).Fonts)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/brandkits", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]brandkit.Kit](t, w), 1)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/brandkits/Friday%20Club", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/brandkits/friday-club", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBrandKitFromSource(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	w := post(t, h, "/api/v1/brandkits", map[string]any{
		"name":        "Poster",
		"source":      solidURI(t, 16, 16, 230, 30, 120, 255),
		"paletteSize": 3,
		"method":      "kmeans",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	kit := decodeBody[brandkit.Kit](t, w)
	require.NotEmpty(t, kit.Colors)
	assert.LessOrEqual(t, len(kit.Colors), 3)
}

func TestBrandKit_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"no colors", map[string]any{"name": "Empty"}, http.StatusBadRequest},
		{"bad hex", map[string]any{"name": "Bad", "colors": []map[string]any{{"hex": "nope"}}}, http.StatusBadRequest},
		{"bad method", map[string]any{"name": "M", "source": "x.png", "method": "median"}, http.StatusBadRequest},
		{"bad size", map[string]any{"name": "S", "source": "x.png", "paletteSize": 99}, http.StatusBadRequest},
		{"unreachable source", map[string]any{"name": "U", "source": "missing.png"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h, "/api/v1/brandkits", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
