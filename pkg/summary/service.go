package summary

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/gemini"
	"github.com/triagex/platform/pkg/observability/metrics"
)

// Generator is the external model contract: one prompt, one response.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*gemini.GenerateResponse, error)
}

// Settings is fixed at process start and shared read-only by all requests.
type Settings struct {
	APIKey string
	Model  string
}

type Result struct {
	Summary string
	Source  gemini.Source
}

type Service struct {
	settings  Settings
	generator Generator
}

// NewService accepts a nil generator; requests then fail with a
// configuration error instead of the process refusing to start.
func NewService(settings Settings, generator Generator) *Service {
	return &Service{settings: settings, generator: generator}
}

// Summarize runs the pipeline for one snapshot. Every failure is an *Error.
func (s *Service) Summarize(ctx context.Context, data PatientData) (result Result, err error) {
	if s.settings.APIKey == "" {
		logger.Log.Error("GEMINI_API_KEY not configured")
		return Result{}, ErrAPIKeyMissing
	}
	if s.generator == nil {
		logger.Log.Error("gemini generator not available")
		return Result{}, ErrNoGenerator
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Log.WithFields(map[string]interface{}{
				"panic": fmt.Sprint(rec),
				"stack": string(debug.Stack()),
			}).Error("summary pipeline panicked")
			err = newError(KindInternal, "Internal server error", fmt.Errorf("%v", rec))
			result = Result{}
		}
	}()

	metrics.SummaryRequested()
	start := time.Now()

	prompt := PromptFor(data)
	resp, genErr := s.generator.Generate(ctx, prompt)
	if genErr != nil {
		metrics.SummaryFailed()
		logger.Log.WithError(genErr).WithFields(map[string]interface{}{
			"model":          s.settings.Model,
			"vital_count":    len(data.VitalSigns),
			"timeline_count": len(data.Timeline),
			"prompt_bytes":   len(prompt),
			"duration_ms":    time.Since(start).Milliseconds(),
		}).Error("AI summary generation failed")
		return Result{}, newError(KindExternalService, "Internal server error", genErr)
	}

	text, source := resp.Extract()
	if source == gemini.SourceFallback {
		logger.Log.WithFields(map[string]interface{}{
			"model":        s.settings.Model,
			"block_reason": resp.BlockReason(),
		}).Warn("model returned no summary text")
	}

	metrics.SummarySucceeded(source == gemini.SourceFallback)
	logger.Log.WithFields(map[string]interface{}{
		"model":          s.settings.Model,
		"vital_count":    len(data.VitalSigns),
		"timeline_count": len(data.Timeline),
		"source":         string(source),
		"duration_ms":    time.Since(start).Milliseconds(),
	}).Info("AI summary generated")

	return Result{Summary: text, Source: source}, nil
}
