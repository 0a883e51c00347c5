package archive

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	draptolib "github.com/five82/drapto"
)

// Progress is one encoder status update.
type Progress struct {
	Stage   string
	Percent float64
	Message string
	ETA     time.Duration
	Warning string
}

// Encoder produces an archive copy of inputPath inside outputDir and returns
// its path.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(Progress)) (string, error)
}

// Library implements Encoder with the Drapto Go library.
type Library struct{}

// NewLibrary constructs a Library encoder.
func NewLibrary() *Library {
	return &Library{}
}

// OutputPath is where Drapto writes the archive of inputPath.
func OutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}

// Encode runs a responsive-priority Drapto encode.
func (l *Library) Encode(ctx context.Context, inputPath, outputDir string, progress func(Progress)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}
	var rep draptolib.Reporter
	if progress != nil {
		rep = &reporter{callback: progress}
	}
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", err
	}
	return OutputPath(inputPath, outputDir), nil
}

var _ Encoder = (*Library)(nil)
