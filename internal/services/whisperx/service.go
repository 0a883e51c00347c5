package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"

	"scenecut/internal/logging"
	"scenecut/internal/media/ffmpeg"
	"scenecut/internal/scenes"
	"scenecut/internal/services"
)

// Service provides WhisperX transcription.
type Service struct {
	cfg      Config
	runner   *ffmpeg.Runner
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLookPath replaces exec.LookPath for availability checks (tests).
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.lookPath = fn
		}
	}
}

// NewService creates a WhisperX service. runner must invoke uvx.
func NewService(cfg Config, runner *ffmpeg.Runner, logger *slog.Logger, opts ...Option) *Service {
	if runner == nil {
		runner = NewRunner(nil)
	}
	s := &Service{
		cfg:      cfg,
		runner:   runner,
		lookPath: exec.LookPath,
		logger:   logging.NewComponentLogger(logger, "whisperx"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRunner returns a uvx runner whose environment keeps torch checkpoint
// loading compatible with WhisperX.
func NewRunner(logger *slog.Logger) *ffmpeg.Runner {
	return ffmpeg.NewRunner(UVXCommand,
		ffmpeg.WithExecutor(ffmpeg.CommandExecutor{Env: Environ()}),
		ffmpeg.WithLogger(logger),
	)
}

// Environ returns the process environment with TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD
// set unless the caller already chose a value. Torch 2.6 changed the
// torch.load default, which breaks the pyannote checkpoints WhisperX loads.
func Environ() []string {
	env := os.Environ()
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return env
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Available reports whether uvx can be launched.
func (s *Service) Available(context.Context) bool {
	_, err := s.lookPath(s.runner.Binary())
	return err == nil
}

// Transcribe runs WhisperX on audioPath and returns its segments as
// utterances. Segments without text are dropped.
func (s *Service) Transcribe(ctx context.Context, audioPath string) ([]scenes.Utterance, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrValidation, "transcription", "transcribe", "audio path required", nil)
	}
	if s.cfg.WorkDir != "" {
		if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
			return nil, fmt.Errorf("transcribe: ensure work dir: %w", err)
		}
	}
	outputDir, err := os.MkdirTemp(s.cfg.WorkDir, "whisperx-*")
	if err != nil {
		return nil, fmt.Errorf("transcribe: create output dir: %w", err)
	}
	defer os.RemoveAll(outputDir)

	logging.WithContext(ctx, s.logger).Info("transcribing audio",
		logging.String("model", s.Model()),
		logging.Bool("cuda", s.cfg.CUDAEnabled),
	)
	if _, err := s.runner.Run(ctx, ffmpeg.Invocation{
		Operation:   "whisperx",
		Args:        s.buildArgs(audioPath, outputDir),
		Timeout:     s.cfg.Timeout,
		FailKind:    services.KindTranscodeFailed,
		TimeoutKind: services.KindTranscodeTimeout,
	}); err != nil {
		return nil, err
	}

	baseName := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	segments, err := LoadSegments(filepath.Join(outputDir, baseName+".json"))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "load whisperx output", "", err)
	}

	utterances := make([]scenes.Utterance, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || seg.End < seg.Start {
			continue
		}
		utterances = append(utterances, scenes.Utterance{Start: seg.Start, End: seg.End, Text: text})
	}
	return utterances, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := LanguageCode(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// LanguageCode normalizes a BCP 47 tag or ISO 639 code ("eng", "en-US") to
// the two-letter code WhisperX expects. Unknown input yields "".
func LanguageCode(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	tag, err := language.Parse(value)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type payload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return p.Segments, nil
}
