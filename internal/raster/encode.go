package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
)

// PNGDataURIPrefix prefixes every data URI produced by this package.
const PNGDataURIPrefix = "data:image/png;base64,"

// EncodePNG serializes buf losslessly, alpha included.
func EncodePNG(buf *Buffer) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, &EncodeError{Format: "png", Err: err}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, buf.Image()); err != nil {
		return nil, &EncodeError{Format: "png", Err: err}
	}
	return out.Bytes(), nil
}

// EncodeDataURI serializes buf to a PNG data URI.
func EncodeDataURI(buf *Buffer) (string, error) {
	data, err := EncodePNG(buf)
	if err != nil {
		return "", err
	}
	return PNGDataURIPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// DecodeDataURI splits a base64 data URI into its media type and payload.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload separator")
	}

	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("only base64 data URIs are supported")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some encoders drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return "", nil, fmt.Errorf("failed to decode base64 payload: %w", err)
		}
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("data URI payload is empty")
	}
	return mime, data, nil
}
