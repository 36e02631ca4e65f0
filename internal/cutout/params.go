package cutout

import (
	"fmt"
	"math"
)

// Parameter ranges. Values outside a range are clamped, never rejected.
const (
	MaxShrinkPx      = 12
	MaxFeatherPx     = 24
	MinAlphaBoost    = 0.5
	MaxAlphaBoost    = 3.0
	MaxAlphaSmoothPx = 6
	MinEdgeGamma     = 0.7
	MaxEdgeGamma     = 1.5
	MaxAlphaFill     = 0.25
)

// Params configures one cleanup run. Each field disables its stage at the
// identity value: 0 for additive effects, 1.0 for alphaBoost and edgeGamma.
type Params struct {
	ShrinkPx      int     `json:"shrinkPx"`
	FeatherPx     int     `json:"featherPx"`
	AlphaBoost    float64 `json:"alphaBoost"`
	Decontaminate float64 `json:"decontaminate"`
	AlphaSmoothPx int     `json:"alphaSmoothPx"`
	EdgeGamma     float64 `json:"edgeGamma"`
	SpillSuppress float64 `json:"spillSuppress"`
	AlphaFill     float64 `json:"alphaFill"`
	EdgeClamp     float64 `json:"edgeClamp"`
}

// DefaultParams returns parameters under which every stage is a no-op.
func DefaultParams() Params {
	return Params{
		AlphaBoost: 1.0,
		EdgeGamma:  1.0,
	}
}

// Clamp returns a copy with every field forced into its documented range.
// Non-finite floats collapse to the stage's identity value.
func (p Params) Clamp() Params {
	return Params{
		ShrinkPx:      clampInt(p.ShrinkPx, 0, MaxShrinkPx),
		FeatherPx:     clampInt(p.FeatherPx, 0, MaxFeatherPx),
		AlphaBoost:    clampFloat(p.AlphaBoost, MinAlphaBoost, MaxAlphaBoost, 1),
		Decontaminate: clampFloat(p.Decontaminate, 0, 1, 0),
		AlphaSmoothPx: clampInt(p.AlphaSmoothPx, 0, MaxAlphaSmoothPx),
		EdgeGamma:     clampFloat(p.EdgeGamma, MinEdgeGamma, MaxEdgeGamma, 1),
		SpillSuppress: clampFloat(p.SpillSuppress, 0, 1, 0),
		AlphaFill:     clampFloat(p.AlphaFill, 0, MaxAlphaFill, 0),
		EdgeClamp:     clampFloat(p.EdgeClamp, 0, 1, 0),
	}
}

// IsIdentity reports whether every stage would be skipped.
func (p Params) IsIdentity() bool {
	return len(p.Plan().Steps) == 0
}

func (p Params) String() string {
	return fmt.Sprintf("boost=%.2f smooth=%d shrink=%d fill=%.2f feather=%d gamma=%.2f clamp=%.2f decontam=%.2f spill=%.2f",
		p.AlphaBoost, p.AlphaSmoothPx, p.ShrinkPx, p.AlphaFill, p.FeatherPx,
		p.EdgeGamma, p.EdgeClamp, p.Decontaminate, p.SpillSuppress)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi, identity float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return identity
	}
	return math.Max(lo, math.Min(hi, v))
}
