package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidPNG(t *testing.T, w, h int, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var out bytes.Buffer
	require.NoError(t, png.Encode(&out, img))
	return out.Bytes()
}

func TestBufferValidate(t *testing.T) {
	tests := []struct {
		name    string
		buf     *Buffer
		wantErr bool
	}{
		{"valid", NewBuffer(2, 3), false},
		{"nil", nil, true},
		{"zero width", &Buffer{Width: 0, Height: 1}, true},
		{"not multiple of 4", &Buffer{Width: 1, Height: 1, Pix: make([]uint8, 5)}, true},
		{"length mismatch", &Buffer{Width: 2, Height: 2, Pix: make([]uint8, 4)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.buf.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustValidatePanics(t *testing.T) {
	assert.Panics(t, func() {
		(&Buffer{Width: 2, Height: 2, Pix: make([]uint8, 3)}).MustValidate()
	})
}

func TestBufferImageSharesPixels(t *testing.T) {
	buf := NewBuffer(2, 2)
	buf.Image().SetNRGBA(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	off := buf.Offset(1, 1)
	assert.Equal(t, []uint8{10, 20, 30, 255}, buf.Pix[off:off+4])
	assert.Equal(t, 1, buf.OpaqueCount())

	clone := buf.Clone()
	clone.Pix[off] = 99
	assert.Equal(t, uint8(10), buf.Pix[off])
}

func TestDataURIRoundTrip(t *testing.T) {
	buf := NewBuffer(3, 2)
	for i := range buf.Pix {
		buf.Pix[i] = uint8(i * 7)
	}

	uri, err := EncodeDataURI(buf)
	require.NoError(t, err)
	assert.Contains(t, uri, PNGDataURIPrefix)

	got, err := NewLoader("").Load(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, buf.Width, got.Width)
	assert.Equal(t, buf.Height, got.Height)
	assert.Equal(t, buf.Pix, got.Pix)
}

func TestEncodeMalformedBuffer(t *testing.T) {
	_, err := EncodePNG(&Buffer{Width: 4, Height: 4})
	var encErr *EncodeError
	assert.True(t, errors.As(err, &encErr))
}

func TestLoadFailures(t *testing.T) {
	loader := NewLoader(t.TempDir())
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"object url", "blob:https://example.com/1234"},
		{"bad data uri", "data:image/png;base64,@@@"},
		{"not an image", "data:text/plain;base64,aGVsbG8gd29ybGQ="},
		{"missing file", "does-not-exist.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := loader.Load(context.Background(), tt.src)
			assert.Nil(t, buf)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
			assert.NotEmpty(t, loadErr.Reason)
		})
	}
}

func TestLoadRelativePath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "red.png"),
		solidPNG(t, 4, 5, color.NRGBA{R: 255, A: 255}), 0644))

	buf, err := NewLoader(root).Load(context.Background(), "red.png")
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Width)
	assert.Equal(t, 5, buf.Height)
	assert.Equal(t, []uint8{255, 0, 0, 255}, buf.Pix[:4])
}

func TestLoadHTTP(t *testing.T) {
	img := solidPNG(t, 2, 2, color.NRGBA{G: 255, A: 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Write(img)
		case "/html":
			w.Write([]byte("<html><body>denied</body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("private network blocked by default", func(t *testing.T) {
		_, err := NewLoader("").Load(context.Background(), srv.URL+"/ok.png")
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Contains(t, loadErr.Reason, "private network")
	})

	loader := NewLoader("")
	loader.AllowPrivateNetworks = true

	t.Run("fetches image", func(t *testing.T) {
		buf, err := loader.Load(context.Background(), srv.URL+"/ok.png")
		require.NoError(t, err)
		assert.Equal(t, 4, buf.OpaqueCount())
	})

	t.Run("non-image body fails", func(t *testing.T) {
		_, err := loader.Load(context.Background(), srv.URL+"/html")
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Contains(t, loadErr.Reason, "not an image")
	})

	t.Run("non-2xx fails", func(t *testing.T) {
		_, err := loader.Load(context.Background(), srv.URL+"/missing")
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Contains(t, loadErr.Reason, "404")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := loader.Load(ctx, srv.URL+"/ok.png")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("body over limit", func(t *testing.T) {
		small := *loader
		small.MaxBytes = 8
		_, err := small.Load(context.Background(), srv.URL+"/ok.png")
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
	})
}

// redirectTransport answers requests for publicHost with a redirect to target
// and sends everything else over the network.
type redirectTransport struct {
	publicHost string
	target     string
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == rt.publicHost {
		h := http.Header{}
		h.Set("Location", rt.target)
		return &http.Response{
			StatusCode: http.StatusFound,
			Header:     h,
			Body:       http.NoBody,
			Request:    req,
		}, nil
	}
	return http.DefaultTransport.RoundTrip(req)
}

func TestLoadHTTP_RedirectToPrivateNetwork(t *testing.T) {
	img := solidPNG(t, 3, 2, color.NRGBA{R: 255, A: 255})
	var hit atomic.Bool
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit.Store(true)
		w.Write(img)
	}))
	defer internal.Close()

	loader := NewLoader("")
	loader.Client = &http.Client{Transport: redirectTransport{
		publicHost: "93.184.216.34",
		target:     internal.URL + "/secret.png",
	}}

	buf, err := loader.Load(context.Background(), "http://93.184.216.34/flyer.png")
	assert.Nil(t, buf)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
	assert.Contains(t, err.Error(), "private network")
	assert.False(t, hit.Load(), "redirect target must not be requested")

	t.Run("allowed when private networks are enabled", func(t *testing.T) {
		loader.AllowPrivateNetworks = true
		buf, err := loader.Load(context.Background(), "http://93.184.216.34/flyer.png")
		require.NoError(t, err)
		assert.Equal(t, 3, buf.Width)
		assert.True(t, hit.Load())
	})
}

func TestDialControl(t *testing.T) {
	loader := NewLoader("")
	assert.Error(t, loader.dialControl("tcp", "127.0.0.1:80", nil))
	assert.Error(t, loader.dialControl("tcp", "10.0.0.7:443", nil))
	assert.Error(t, loader.dialControl("tcp6", "[::1]:443", nil))
	assert.NoError(t, loader.dialControl("tcp", "93.184.216.34:443", nil))

	loader.AllowPrivateNetworks = true
	assert.NoError(t, loader.dialControl("tcp", "127.0.0.1:80", nil))
}

func TestLoadPathConfinedToRoot(t *testing.T) {
	base := t.TempDir()
	public := filepath.Join(base, "public")
	require.NoError(t, os.MkdirAll(filepath.Join(public, "nested"), 0755))
	img := solidPNG(t, 3, 2, color.NRGBA{B: 255, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(base, "private.png"), img, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(public, "nested", "ok.png"), img, 0644))

	loader := NewLoader(public)

	buf, err := loader.Load(context.Background(), "nested/ok.png")
	require.NoError(t, err)
	assert.Equal(t, 3, buf.Width)

	for _, src := range []string{
		filepath.Join(base, "private.png"),
		"../private.png",
		"nested/../../private.png",
		filepath.Join(base, "missing.png"),
	} {
		t.Run(src, func(t *testing.T) {
			buf, err := loader.Load(context.Background(), src)
			assert.Nil(t, buf)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, "path is outside the source root", loadErr.Reason)
		})
	}

	t.Run("symlink escaping root", func(t *testing.T) {
		if err := os.Symlink(filepath.Join(base, "private.png"), filepath.Join(public, "link.png")); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		_, err := loader.Load(context.Background(), "link.png")
		var loadErr *LoadError
		require.True(t, errors.As(err, &loadErr))
	})

	t.Run("any path when allowed", func(t *testing.T) {
		local := NewLoader(public)
		local.AllowAnyPath = true
		buf, err := local.Load(context.Background(), filepath.Join(base, "private.png"))
		require.NoError(t, err)
		assert.Equal(t, 2, buf.Height)
	})
}

func TestLoadPixelLimit(t *testing.T) {
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(
		solidPNG(t, 20, 20, color.NRGBA{R: 10, A: 255}))

	loader := NewLoader("")
	loader.MaxPixels = 399
	buf, err := loader.Load(context.Background(), uri)
	assert.Nil(t, buf)
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Reason, "pixel limit")

	loader.MaxPixels = 400
	buf, err = loader.Load(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, 20, buf.Width)
}

func TestIsSafeURL(t *testing.T) {
	tests := []struct {
		url     string
		safe    bool
		wantErr bool
	}{
		{"http://127.0.0.1/x.png", false, false},
		{"http://10.1.2.3/x.png", false, false},
		{"http://169.254.169.254/latest/meta-data", false, false},
		{"http://[::1]/x.png", false, false},
		{"https://8.8.8.8/x.png", true, false},
		{"ftp://8.8.8.8/x.png", false, true},
		{"not a url", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			safe, err := IsSafeURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.safe, safe)
		})
	}
}

func TestDecodeDataURI(t *testing.T) {
	mime, data, err := DecodeDataURI("data:text/plain;base64,aGk=")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mime)
	assert.Equal(t, []byte("hi"), data)

	_, _, err = DecodeDataURI("data:text/plain,hi")
	assert.Error(t, err)
	_, _, err = DecodeDataURI("https://example.com")
	assert.Error(t, err)
}
