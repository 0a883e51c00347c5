package analysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"scenecut/internal/audioenergy"
	"scenecut/internal/config"
	"scenecut/internal/services"
)

// Store manages analysis persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	path   string
	layout Layout

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	lockRetryDelay = 50 * time.Millisecond

	// Fixed-width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrNotFound reports an unknown analysis id.
var ErrNotFound = fmt.Errorf("%w: analysis not found", services.ErrNotFound)

// Open initializes or connects to the analysis database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:     db,
		path:   dbPath,
		layout: Layout{Root: cfg.Paths.StoreDir},
		locks:  make(map[string]*sync.Mutex),
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Layout returns the on-disk layout rooted at the store directory.
func (s *Store) Layout() Layout {
	return s.layout
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Create persists a new analysis. Scene records must already be valid.
func (s *Store) Create(ctx context.Context, a *Analysis) error {
	if a == nil {
		return errors.New("analysis is nil")
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if err := a.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "store", "create analysis", a.ID, err)
	}
	unlock, err := s.lock(ctx, a.ID)
	if err != nil {
		return err
	}
	defer unlock()
	return s.save(ctx, a, true)
}

// Get loads an analysis with its scenes in index order.
func (s *Store) Get(ctx context.Context, id string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, source_path, method, metadata_json, samples_json, created_at, updated_at
         FROM analyses WHERE id = ?`, id)
	var (
		a                      Analysis
		method                 string
		metaJSON, samplesJSON  string
		createdRaw, updatedRaw string
	)
	if err := row.Scan(&a.ID, &a.FileName, &a.SourcePath, &method, &metaJSON, &samplesJSON, &createdRaw, &updatedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	a.Method = sceneMethod(method)
	if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(samplesJSON), &a.AudioSamples); err != nil {
		return nil, fmt.Errorf("decode audio samples for %s: %w", id, err)
	}
	a.CreatedAt = parseTime(createdRaw)
	a.UpdatedAt = parseTime(updatedRaw)

	rows, err := s.db.QueryContext(ctx,
		`SELECT scene_json FROM scenes WHERE analysis_id = ? ORDER BY scene_index`, id)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		scene, err := decodeScene(raw)
		if err != nil {
			return nil, fmt.Errorf("decode scene for %s: %w", id, err)
		}
		a.Scenes = append(a.Scenes, scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return &a, nil
}

// List returns summaries of all analyses, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.file_name, a.method, a.metadata_json, a.created_at, a.updated_at,
                (SELECT COUNT(1) FROM scenes s WHERE s.analysis_id = a.id)
         FROM analyses a ORDER BY a.created_at DESC, a.id`)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			a                      Analysis
			method, metaJSON       string
			createdRaw, updatedRaw string
			count                  int
		)
		if err := rows.Scan(&a.ID, &a.FileName, &method, &metaJSON, &createdRaw, &updatedRaw, &count); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		a.Method = sceneMethod(method)
		_ = json.Unmarshal([]byte(metaJSON), &a.Metadata)
		a.CreatedAt = parseTime(createdRaw)
		a.UpdatedAt = parseTime(updatedRaw)
		summary := a.summary()
		summary.SceneCount = count
		out = append(out, summary)
	}
	return out, rows.Err()
}

// Update applies fn to the stored analysis under the single-writer lock and
// persists the result. When fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, id string, fn func(*Analysis) error) (*Analysis, error) {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	a.UpdatedAt = time.Now().UTC()
	if err := a.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "store", "update analysis", id, err)
	}
	if err := s.save(ctx, a, false); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an analysis row and its scenes. Files are left in place.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock, err := s.lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()
	res, err := s.execWithRetry(ctx, `DELETE FROM analyses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Store) save(ctx context.Context, a *Analysis, insert bool) error {
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	samples := a.AudioSamples
	if samples == nil {
		samples = []audioenergy.Sample{}
	}
	samplesJSON, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("marshal audio samples: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if insert {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO analyses (id, file_name, source_path, method, metadata_json, samples_json, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, a.FileName, a.SourcePath, string(a.Method), string(metaJSON), string(samplesJSON),
				a.CreatedAt.UTC().Format(timeLayout), a.UpdatedAt.UTC().Format(timeLayout))
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE analyses SET file_name = ?, source_path = ?, method = ?, metadata_json = ?,
                     samples_json = ?, updated_at = ?
                 WHERE id = ?`,
				a.FileName, a.SourcePath, string(a.Method), string(metaJSON), string(samplesJSON),
				a.UpdatedAt.UTC().Format(timeLayout), a.ID)
		}
		if err != nil {
			return fmt.Errorf("write analysis: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE analysis_id = ?`, a.ID); err != nil {
			return fmt.Errorf("clear scenes: %w", err)
		}
		for _, scene := range a.Scenes {
			raw, err := json.Marshal(scene)
			if err != nil {
				return fmt.Errorf("marshal scene %s: %w", scene.SceneID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO scenes (analysis_id, scene_id, scene_index, scene_json) VALUES (?, ?, ?, ?)`,
				a.ID, scene.SceneID, scene.Index, string(raw)); err != nil {
				return fmt.Errorf("write scene %s: %w", scene.SceneID, err)
			}
		}
		return tx.Commit()
	})
}

// lock serializes writers of one analysis within the process and across
// processes.
func (s *Store) lock(ctx context.Context, id string) (func(), error) {
	if strings.TrimSpace(id) == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "lock", "analysis id required", nil)
	}
	s.mu.Lock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	s.mu.Unlock()
	mu.Lock()

	if err := os.MkdirAll(s.layout.Dir(id), 0o755); err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("ensure analysis dir: %w", err)
	}
	fl := flock.New(s.layout.LockPath(id))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		mu.Unlock()
		if err == nil {
			err = errors.New("lock not acquired")
		}
		return nil, fmt.Errorf("lock analysis %s: %w", id, err)
	}
	return func() {
		_ = fl.Unlock()
		mu.Unlock()
	}, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
