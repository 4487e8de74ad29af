package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tpris/backend/internal/ai"
	"tpris/backend/internal/analysis"
	"tpris/backend/internal/util"
)

// Options tunes how model replies are resolved.
type Options struct {
	Salvage bool
}

// Pipeline sends feedback to the inference runtime and resolves the reply
// into an AnalysisResult. It holds no per-request state.
type Pipeline struct {
	generator ai.Generator
	resolver  analysis.Resolver
}

// Report describes one completed analysis.
type Report struct {
	RequestID string
	Runtime   string
	Outcome   analysis.Outcome
	RawLength int
	Duration  time.Duration
}

// New constructs a Pipeline around generator.
func New(generator ai.Generator, opts Options) *Pipeline {
	return &Pipeline{
		generator: generator,
		resolver:  analysis.Resolver{Salvage: opts.Salvage},
	}
}

// Analyze runs one request end to end. The returned outcome always carries a
// schema-complete result; the inference call is never retried here.
func (p *Pipeline) Analyze(ctx context.Context, requestID string, input FeedbackInput) Report {
	timer := util.StartTimer()
	report := Report{RequestID: requestID}
	log := logrus.WithField("request_id", requestID)

	if p.generator == nil || !p.generator.Enabled() {
		report.Outcome = failed(analysis.FailureFromError(ai.ErrDisabled))
		report.Duration = timer.Elapsed()
		log.Warn("inference runtime not configured")
		return report
	}
	report.Runtime = p.generator.Name()

	prompt := BuildPrompt(input)
	log.WithFields(logrus.Fields{
		"runtime":       report.Runtime,
		"prompt_length": len(prompt),
	}).Debug("sending prompt to inference runtime")

	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		report.Outcome = failed(analysis.FailureFromError(err))
		report.Duration = timer.Elapsed()
		log.WithError(err).WithFields(logrus.Fields{
			"runtime":     report.Runtime,
			"flag":        report.Outcome.Failure.Kind.Code(),
			"duration_ms": timer.ElapsedMs(),
		}).Warn("inference call failed")
		return report
	}
	raw = strings.TrimSpace(raw)
	report.RawLength = len(raw)

	report.Outcome = p.resolver.Resolve(StripCodeFence(raw))
	report.Duration = timer.Elapsed()

	fields := logrus.Fields{
		"runtime":     report.Runtime,
		"raw_length":  report.RawLength,
		"score":       report.Outcome.Score,
		"repairs":     report.Outcome.Repairs,
		"action":      report.Outcome.Result.Decision.Action,
		"duration_ms": timer.ElapsedMs(),
	}
	if report.Outcome.Failed() {
		fields["flag"] = report.Outcome.Failure.Kind.Code()
		log.WithFields(fields).WithField("detail", report.Outcome.Failure.Detail).Warn("model reply fell back to default record")
		return report
	}
	log.WithFields(fields).Info("analysis complete")
	return report
}

func failed(f analysis.Failure) analysis.Outcome {
	return analysis.Outcome{
		Result:  analysis.Fallback(f),
		Failure: &f,
		Path:    []analysis.State{analysis.StateReceived, analysis.StateDone},
	}
}
