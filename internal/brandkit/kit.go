// Package brandkit manages reusable brand kits: named palettes, fonts and a logo.
package brandkit

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// MaxColors bounds the palette of a kit.
const MaxColors = 16

// Swatch is one palette entry. Weight is the colour's share of the source image
// when extracted, or 0 for hand-picked colours.
type Swatch struct {
	Hex    string  `json:"hex"`
	Weight float64 `json:"weight"`
}

// Kit is a saved brand kit.
type Kit struct {
	Name       string    `json:"name"`
	Colors     []Swatch  `json:"colors"`
	Fonts      []string  `json:"fonts,omitempty"`
	LogoSource string    `json:"logoSource,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Validate checks the kit can be stored and rendered.
func (k *Kit) Validate() error {
	if strings.TrimSpace(k.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if Slug(k.Name) == "" {
		return fmt.Errorf("name %q has no usable characters", k.Name)
	}
	if len(k.Colors) == 0 {
		return fmt.Errorf("at least one color is required")
	}
	if len(k.Colors) > MaxColors {
		return fmt.Errorf("too many colors: %d (max %d)", len(k.Colors), MaxColors)
	}
	for i, c := range k.Colors {
		if _, err := colorful.Hex(c.Hex); err != nil {
			return fmt.Errorf("color %d: invalid hex %q", i, c.Hex)
		}
		if c.Weight < 0 {
			return fmt.Errorf("color %d: negative weight", i)
		}
	}
	return nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a kit name into a filesystem-safe identifier.
func Slug(name string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
