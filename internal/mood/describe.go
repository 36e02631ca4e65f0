package mood

import "fmt"

// FallbackPrompt is returned whenever a reference cannot be analysed.
const FallbackPrompt = "Style reference unavailable. Aim for a moody nightlife atmosphere " +
	"with rich club lighting and a cohesive palette. Do not copy any subject, pose or composition."

// Labels are the qualitative buckets derived from Metrics.
type Labels struct {
	Palette    string
	Contrast   string
	Saturation string
	Energy     string
	Lighting   string
}

// Label maps metrics onto fixed thresholds.
func Label(m Metrics) Labels {
	l := Labels{Palette: m.Palette()}

	switch {
	case m.LumaStd > 62:
		l.Contrast = "high"
	case m.LumaStd > 40:
		l.Contrast = "medium"
	default:
		l.Contrast = "low"
	}

	switch {
	case m.MeanSaturation > 0.52:
		l.Saturation = "vivid"
	case m.MeanSaturation > 0.34:
		l.Saturation = "moderate"
	default:
		l.Saturation = "muted"
	}

	switch {
	case m.EdgeEnergy > 24:
		l.Energy = "high"
	case m.EdgeEnergy > 15:
		l.Energy = "moderate"
	default:
		l.Energy = "calm"
	}

	switch {
	case m.MeanLuma < 92:
		l.Lighting = "dark, low-key"
	case m.MeanLuma > 150:
		l.Lighting = "bright, high-key"
	default:
		l.Lighting = "balanced"
	}
	return l
}

// Describe renders metrics as a prompt fragment. It steers palette, lighting
// and mood only and forbids reuse of the reference's content.
func Describe(m Metrics) string {
	l := Label(m)
	return fmt.Sprintf(
		"Match the mood of the style reference: %s, %s saturation, %s contrast, %s lighting and %s visual energy. "+
			"Reuse only its palette, lighting and atmosphere. "+
			"Do not copy the subject, pose, composition, text or any recognizable element of the reference.",
		l.Palette, l.Saturation, l.Contrast, l.Lighting, l.Energy)
}
