package archive

import (
	"fmt"

	draptolib "github.com/five82/drapto"
)

// reporter folds Drapto's Reporter callbacks into Progress updates. Only
// stage, encode and warning events carry information an export needs.
type reporter struct {
	callback func(Progress)
}

func (r *reporter) Hardware(draptolib.HardwareSummary) {}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.callback(Progress{Stage: "initialization", Message: fmt.Sprintf("%v %v", s.Resolution, s.DynamicRange)})
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	p := Progress{Stage: s.Stage, Percent: float64(s.Percent), Message: s.Message}
	if s.ETA != nil {
		p.ETA = *s.ETA
	}
	r.callback(p)
}

func (r *reporter) CropResult(draptolib.CropSummary) {}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.callback(Progress{Stage: "config", Message: fmt.Sprintf("%v preset %v", s.Encoder, s.Preset)})
}

func (r *reporter) EncodingStarted(uint64) {
	r.callback(Progress{Stage: "encoding"})
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.callback(Progress{Stage: "encoding", Percent: float64(s.Percent), ETA: s.ETA})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	msg := "validation passed"
	if !s.Passed {
		msg = "validation failed"
	}
	r.callback(Progress{Stage: "validation", Percent: 100, Message: msg})
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.callback(Progress{Stage: "complete", Percent: 100, Message: fmt.Sprint(s.OutputPath)})
}

func (r *reporter) Warning(message string) {
	r.callback(Progress{Stage: "warning", Warning: message})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.callback(Progress{Stage: "error", Warning: fmt.Sprintf("%v: %v", e.Title, e.Message)})
}

func (r *reporter) OperationComplete(message string) {
	r.callback(Progress{Stage: "complete", Percent: 100, Message: message})
}

func (r *reporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *reporter) FileProgress(draptolib.FileProgressContext) {}

func (r *reporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*reporter)(nil)
