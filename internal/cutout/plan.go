package cutout

import (
	"fmt"
	"sort"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

// Stage identifies one alpha transform. The numeric value is its position in
// the fixed execution order.
type Stage int

const (
	StageAlphaBoost Stage = iota
	StageAlphaSmooth
	StageErode
	StageAlphaFill
	StageFeather
	StageEdgeGammaClamp
	StageDecontaminate
	StageSpillSuppress
)

var stageNames = map[Stage]string{
	StageAlphaBoost:     "alphaBoost",
	StageAlphaSmooth:    "alphaSmooth",
	StageErode:          "erode",
	StageAlphaFill:      "alphaFill",
	StageFeather:        "feather",
	StageEdgeGammaClamp: "edgeGammaClamp",
	StageDecontaminate:  "decontaminate",
	StageSpillSuppress:  "spillSuppress",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Step is an enabled stage bound to its parameter.
type Step struct {
	Stage  Stage
	Detail string
	apply  func(*raster.Buffer)
}

// Apply runs the step in place on buf.
func (s Step) Apply(buf *raster.Buffer) {
	s.apply(buf)
}

// Plan is an ordered list of enabled steps.
type Plan struct {
	Steps []Step
}

// NewPlan builds a plan from explicit steps. Steps are sorted into the fixed
// stage order; when a stage is given twice the last one wins. Steps not built
// by a constructor such as ErodeStep have nothing to run and are dropped.
func NewPlan(steps ...Step) Plan {
	byStage := make(map[Stage]Step, len(steps))
	for _, s := range steps {
		if s.apply == nil {
			continue
		}
		byStage[s.Stage] = s
	}

	out := make([]Step, 0, len(byStage))
	for _, s := range byStage {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage < out[j].Stage })
	return Plan{Steps: out}
}

// Stages lists the stage names of the plan in execution order.
func (p Plan) Stages() []string {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.Stage.String()
	}
	return names
}

// Plan returns the enabled steps for the clamped parameters. Stages sitting at
// their identity value are left out.
func (p Params) Plan() Plan {
	c := p.Clamp()

	var steps []Step
	if c.AlphaBoost != 1 {
		steps = append(steps, BoostStep(c.AlphaBoost))
	}
	if c.AlphaSmoothPx > 0 {
		steps = append(steps, SmoothStep(c.AlphaSmoothPx))
	}
	if c.ShrinkPx > 0 {
		steps = append(steps, ErodeStep(c.ShrinkPx))
	}
	if c.AlphaFill > 0 {
		steps = append(steps, FillStep(c.AlphaFill))
	}
	if c.FeatherPx > 0 {
		steps = append(steps, FeatherStep(c.FeatherPx))
	}
	if c.EdgeGamma != 1 || c.EdgeClamp > 0 {
		steps = append(steps, EdgeStep(c.EdgeGamma, c.EdgeClamp))
	}
	if c.Decontaminate > 0 {
		steps = append(steps, DecontaminateStep(c.Decontaminate))
	}
	if c.SpillSuppress > 0 {
		steps = append(steps, SpillStep(c.SpillSuppress))
	}
	return NewPlan(steps...)
}

func BoostStep(boost float64) Step {
	return Step{
		Stage:  StageAlphaBoost,
		Detail: fmt.Sprintf("boost=%.2f", boost),
		apply:  func(b *raster.Buffer) { AlphaBoost(b, boost) },
	}
}

func SmoothStep(radius int) Step {
	return Step{
		Stage:  StageAlphaSmooth,
		Detail: fmt.Sprintf("radius=%d", radius),
		apply:  func(b *raster.Buffer) { AlphaSmooth(b, radius) },
	}
}

func ErodeStep(radius int) Step {
	return Step{
		Stage:  StageErode,
		Detail: fmt.Sprintf("radius=%d", radius),
		apply:  func(b *raster.Buffer) { Erode(b, radius) },
	}
}

func FillStep(fill float64) Step {
	return Step{
		Stage:  StageAlphaFill,
		Detail: fmt.Sprintf("fill=%.3f", fill),
		apply:  func(b *raster.Buffer) { AlphaFill(b, fill) },
	}
}

func FeatherStep(radius int) Step {
	return Step{
		Stage:  StageFeather,
		Detail: fmt.Sprintf("radius=%d", radius),
		apply:  func(b *raster.Buffer) { Feather(b, radius) },
	}
}

func EdgeStep(gamma, clamp float64) Step {
	return Step{
		Stage:  StageEdgeGammaClamp,
		Detail: fmt.Sprintf("gamma=%.2f clamp=%.2f", gamma, clamp),
		apply:  func(b *raster.Buffer) { EdgeGammaClamp(b, gamma, clamp) },
	}
}

func DecontaminateStep(amount float64) Step {
	return Step{
		Stage:  StageDecontaminate,
		Detail: fmt.Sprintf("amount=%.2f", amount),
		apply:  func(b *raster.Buffer) { Decontaminate(b, amount) },
	}
}

func SpillStep(amount float64) Step {
	return Step{
		Stage:  StageSpillSuppress,
		Detail: fmt.Sprintf("amount=%.2f", amount),
		apply:  func(b *raster.Buffer) { SpillSuppress(b, amount) },
	}
}
