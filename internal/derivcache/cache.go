package derivcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"scenecut/internal/analysis"
	"scenecut/internal/logging"
)

// freeSpaceFloor is the minimum free-space ratio allowed before pruning (0.20 => 80% full).
const freeSpaceFloor = 0.20

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Forgetter drops stored references to an analysis' pruned segments.
type Forgetter interface {
	ClearDerivatives(ctx context.Context, id string) error
}

// Manager measures and prunes segment directories under the store root.
type Manager struct {
	layout   analysis.Layout
	maxBytes int64
	forget   Forgetter
	logger   *slog.Logger
	statfs   statfsFunc
}

// Stats describes current derivative usage.
type Stats struct {
	Entries        int            `json:"entries"`
	TotalBytes     int64          `json:"total_bytes"`
	MaxBytes       int64          `json:"max_bytes"`
	FreeBytes      uint64         `json:"free_bytes"`
	TotalFSBytes   uint64         `json:"total_fs_bytes"`
	FreeRatio      float64        `json:"free_ratio"`
	EntrySummaries []EntrySummary `json:"entry_summaries"`
}

// EntrySummary describes the segments of one analysis.
type EntrySummary struct {
	AnalysisID   string    `json:"analysis_id"`
	Directory    string    `json:"directory"`
	SizeBytes    int64     `json:"size_bytes"`
	ModifiedAt   time.Time `json:"modified_at"`
	SegmentCount int       `json:"segment_count"`
}

// NewManager builds a manager over the store layout. maxGiB <= 0 disables
// the size budget and leaves only the free-space floor.
func NewManager(layout analysis.Layout, maxGiB int, forget Forgetter, logger *slog.Logger) *Manager {
	var maxBytes int64
	if maxGiB > 0 {
		maxBytes = int64(maxGiB) * 1024 * 1024 * 1024
	}
	return &Manager{
		layout:   layout,
		maxBytes: maxBytes,
		forget:   forget,
		logger:   logging.NewComponentLogger(logger, "derivcache"),
		statfs:   realStatfs,
	}
}

// Stats returns current usage and filesystem free-space info. Entries are
// listed newest first.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	entries, totalSize, err := m.scan(ctx)
	if err != nil {
		return Stats{}, err
	}
	totalFS, freeFS, err := m.statfs(m.layout.Root)
	if err != nil {
		return Stats{}, fmt.Errorf("derivcache: statfs: %w", err)
	}
	ratio := 1.0
	if totalFS > 0 {
		ratio = float64(freeFS) / float64(totalFS)
	}
	details := make([]EntrySummary, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		details = append(details, entries[i])
	}
	return Stats{
		Entries:        len(entries),
		TotalBytes:     totalSize,
		MaxBytes:       m.maxBytes,
		FreeBytes:      freeFS,
		TotalFSBytes:   totalFS,
		FreeRatio:      ratio,
		EntrySummaries: details,
	}, nil
}

// Prune removes the oldest segment directories until both the size budget
// and the free-space floor hold. keepID protects the analysis currently
// being worked on; an error is returned when the limits still fail once
// only it remains.
func (m *Manager) Prune(ctx context.Context, keepID string) ([]EntrySummary, error) {
	entries, totalSize, err := m.scan(ctx)
	if err != nil {
		return nil, err
	}
	var (
		removed []EntrySummary
		kept    bool
	)
	for {
		within, err := m.withinLimits(totalSize)
		if err != nil {
			return removed, err
		}
		if within {
			return removed, nil
		}
		if len(entries) == 0 {
			break
		}
		oldest := entries[0]
		entries = entries[1:]
		if oldest.AnalysisID == keepID {
			kept = true
			continue
		}
		if err := os.RemoveAll(oldest.Directory); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("derivcache: remove %q: %w", oldest.Directory, err)
		}
		if m.forget != nil {
			if err := m.forget.ClearDerivatives(ctx, oldest.AnalysisID); err != nil {
				logging.WarnWithContext(logging.WithContext(ctx, m.logger), "pruned segments still referenced", "derivcache_forget_failed",
					logging.String(logging.FieldAnalysisID, oldest.AnalysisID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "scene records point at missing segment files"),
					logging.String(logging.FieldErrorHint, "run `scenecut render` for the analysis"),
				)
			}
		}
		m.logger.InfoContext(ctx, "pruned analysis segments",
			logging.String(logging.FieldAnalysisID, oldest.AnalysisID),
			logging.Int64("entry_size_bytes", oldest.SizeBytes),
		)
		totalSize -= oldest.SizeBytes
		removed = append(removed, oldest)
	}
	if kept {
		return removed, fmt.Errorf("derivcache: store over limits and active analysis %q cannot be pruned", keepID)
	}
	return removed, nil
}

// scan lists segment directories oldest first.
func (m *Manager) scan(ctx context.Context) ([]EntrySummary, int64, error) {
	entries := make([]EntrySummary, 0)
	var total int64
	rootEntries, err := os.ReadDir(m.layout.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return entries, 0, nil
		}
		return nil, 0, fmt.Errorf("derivcache: list root: %w", err)
	}
	for _, entry := range rootEntries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		dir := filepath.Join(m.layout.Dir(id), "segments")
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		size, mtime, count, err := dirUsage(dir)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "derivcache: skip entry; excluded from stats and pruning", "derivcache_entry_skipped",
				logging.String("directory", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect store directory permissions or remove the corrupted entry"),
			)
			continue
		}
		total += size
		entries = append(entries, EntrySummary{AnalysisID: id, Directory: dir, SizeBytes: size, ModifiedAt: mtime, SegmentCount: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModifiedAt.Before(entries[j].ModifiedAt)
	})
	return entries, total, nil
}

func (m *Manager) withinLimits(totalSize int64) (bool, error) {
	if m.maxBytes > 0 && totalSize > m.maxBytes {
		return false, nil
	}
	total, free, err := m.statfs(m.layout.Root)
	if err != nil {
		return false, fmt.Errorf("derivcache: statfs: %w", err)
	}
	if total == 0 {
		return true, nil
	}
	return float64(free)/float64(total) >= freeSpaceFloor, nil
}

func dirUsage(path string) (int64, time.Time, int, error) {
	var (
		size   int64
		latest time.Time
		count  int
	)
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			if strings.EqualFold(filepath.Ext(p), ".mp4") && !strings.HasPrefix(d.Name(), ".") {
				count++
			}
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return 0, time.Time{}, 0, err
	}
	return size, latest, count, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
