// Package backdrop generates flyer backgrounds with a Gemini image model,
// steered by the mood of an optional reference image.
package backdrop

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/nightlifeflyers/flyerstudio/internal/mood"
)

// DefaultAspectRatio is portrait, the usual flyer format.
const DefaultAspectRatio = "3:4"

var aspectRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9"}

// ValidateAspectRatio accepts the ratios supported by the image model.
func ValidateAspectRatio(aspect string) error {
	if !slices.Contains(aspectRatios, aspect) {
		return fmt.Errorf("unsupported aspect ratio %q (supported: %s)", aspect, strings.Join(aspectRatios, ", "))
	}
	return nil
}

// ValidateSeed rejects seeds the image model cannot take. Gemini seeds are
// 32-bit.
func ValidateSeed(seed int64) error {
	if seed < math.MinInt32 || seed > math.MaxInt32 {
		return fmt.Errorf("seed %d is outside the 32-bit range [%d, %d]", seed, math.MinInt32, math.MaxInt32)
	}
	return nil
}

// BuildPrompt composes the generator prompt. A nil signal adds no style hints.
func BuildPrompt(userPrompt, aspect string, sig *mood.Signal) string {
	var b strings.Builder
	b.WriteString("Create a background image for a nightclub event flyer. ")
	b.WriteString(strings.TrimSpace(userPrompt))
	if !strings.HasSuffix(b.String(), ".") {
		b.WriteString(".")
	}
	b.WriteString(" Leave open space for a cutout subject and headline text. ")
	b.WriteString("Do not render any text, logos or people. ")
	fmt.Fprintf(&b, "Aspect ratio %s.", aspect)

	if sig != nil && sig.StylePrompt != "" {
		b.WriteString("\n\n")
		b.WriteString(sig.StylePrompt)
		if sig.BlurredReference != nil {
			b.WriteString(" The attached blurred image is a loose colour and lighting reference only.")
		}
	}
	return b.String()
}
