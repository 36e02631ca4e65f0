package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	_ "golang.org/x/image/webp"
)

// DefaultMaxBytes bounds remote and local reads.
const DefaultMaxBytes = 32 << 20

// DefaultMaxPixels bounds the decoded area of a source (64 megapixels).
const DefaultMaxPixels = 1 << 26

const maxRedirects = 5

// Loader resolves source references into Buffers.
//
// Supported references are base64 data URIs, http(s) URLs and filesystem
// paths. Paths must stay inside Root unless AllowAnyPath is set. Browser
// object URLs ("blob:") are rejected since they only exist inside a page
// session.
type Loader struct {
	Client               *http.Client
	Root                 string
	AllowAnyPath         bool
	AllowPrivateNetworks bool
	MaxBytes             int64
	MaxPixels            int
}

// NewLoader creates a loader with a bounded HTTP client. The client refuses
// to dial private addresses unless AllowPrivateNetworks is set, which also
// covers redirects and hosts that re-resolve after the URL check.
func NewLoader(root string) *Loader {
	l := &Loader{
		Root:      root,
		MaxBytes:  DefaultMaxBytes,
		MaxPixels: DefaultMaxPixels,
	}

	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: l.dialControl,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	l.Client = &http.Client{Timeout: 30 * time.Second, Transport: transport}
	return l
}

// Load decodes src into a Buffer. Every failure is a *LoadError.
func (l *Loader) Load(ctx context.Context, src string) (*Buffer, error) {
	data, err := l.read(ctx, src)
	if err != nil {
		return nil, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "undecodable image data", Err: err}
	}
	if limit := l.maxPixels(); cfg.Width > 0 && cfg.Height > 0 && cfg.Width > limit/cfg.Height {
		return nil, &LoadError{Source: src,
			Reason: fmt.Sprintf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, limit)}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "undecodable image data", Err: err}
	}

	buf, err := FromImage(img)
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "zero-area image", Err: err}
	}

	slog.Debug("Image loaded", "source", shortSource(src), "format", format,
		"width", buf.Width, "height", buf.Height)
	return buf, nil
}

func (l *Loader) read(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	switch {
	case src == "":
		return nil, &LoadError{Source: src, Reason: "empty source reference"}
	case strings.HasPrefix(src, "data:"):
		_, data, err := DecodeDataURI(src)
		if err != nil {
			return nil, &LoadError{Source: src, Reason: "malformed data URI", Err: err}
		}
		return data, nil
	case strings.HasPrefix(src, "blob:"):
		return nil, &LoadError{Source: src, Reason: "object URLs are only valid inside a browser session"}
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetch(ctx, src)
	default:
		return l.readFile(src)
	}
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	if !l.AllowPrivateNetworks {
		safe, err := IsSafeURL(src)
		if err != nil {
			return nil, &LoadError{Source: src, Reason: "unreachable source", Err: err}
		}
		if !safe {
			return nil, &LoadError{Source: src, Reason: "URL resolves to a private network address"}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "invalid request", Err: err}
	}
	req.Header.Set("Accept", "image/*")

	client := http.Client{Timeout: 30 * time.Second}
	if l.Client != nil {
		client = *l.Client
	}
	client.CheckRedirect = l.checkRedirect
	resp, err := client.Do(req)
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "unreachable source", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{Source: src, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes()+1))
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "failed to read response body", Err: err}
	}
	if int64(len(data)) > l.maxBytes() {
		return nil, &LoadError{Source: src, Reason: fmt.Sprintf("response exceeds %d bytes", l.maxBytes())}
	}

	// An opaque body that is not an image must not become an empty buffer.
	if mime := http.DetectContentType(data); !strings.HasPrefix(mime, "image/") {
		return nil, &LoadError{Source: src, Reason: fmt.Sprintf("response is %s, not an image", mime)}
	}
	return data, nil
}

// checkRedirect applies the URL check to every redirect hop.
func (l *Loader) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	if l.AllowPrivateNetworks {
		return nil
	}
	safe, err := IsSafeURL(req.URL.String())
	if err != nil {
		return fmt.Errorf("failed to validate redirect: %w", err)
	}
	if !safe {
		return fmt.Errorf("redirect to %s resolves to a private network address", req.URL.Host)
	}
	return nil
}

// dialControl runs after name resolution, on the address actually dialled.
func (l *Loader) dialControl(network, address string, _ syscall.RawConn) error {
	if l.AllowPrivateNetworks {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("failed to parse dial address %q: %w", address, err)
	}
	ip := net.ParseIP(host)
	if ip == nil || isBlockedIP(ip) {
		return fmt.Errorf("refusing to dial private network address %s", host)
	}
	return nil
}

func (l *Loader) readFile(src string) ([]byte, error) {
	var (
		f   *os.File
		err error
	)
	if l.AllowAnyPath {
		path := src
		if !filepath.IsAbs(path) && l.Root != "" {
			path = filepath.Join(l.Root, path)
		}
		f, err = os.Open(path)
	} else {
		// Checked before touching the filesystem so the answer does not
		// depend on whether the file exists.
		if filepath.IsAbs(src) || !filepath.IsLocal(src) {
			return nil, &LoadError{Source: src, Reason: "path is outside the source root"}
		}
		root := l.Root
		if root == "" {
			root = "."
		}
		f, err = os.OpenInRoot(root, src)
	}
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "unreachable source", Err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, l.maxBytes()+1))
	if err != nil {
		return nil, &LoadError{Source: src, Reason: "failed to read file", Err: err}
	}
	if int64(len(data)) > l.maxBytes() {
		return nil, &LoadError{Source: src, Reason: fmt.Sprintf("file exceeds %d bytes", l.maxBytes())}
	}
	return data, nil
}

func (l *Loader) maxPixels() int {
	if l.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return l.MaxPixels
}

func (l *Loader) maxBytes() int64 {
	if l.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return l.MaxBytes
}
