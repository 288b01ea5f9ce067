// Package cache provides a persistent, concurrency-safe store for image
// analysis results, keyed by (path, modification time, size) so that any
// write to a file invalidates its entry without an explicit call.
//
// The cache is an optimization, never a correctness dependency: storage
// failures during get/put degrade to a miss or no-op with a logged warning.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"dupefinder/internal/models"
)

// schemaVersion guards the row shape. Bumping it drops and recreates the
// images table on next open (destructive migration).
const schemaVersion = 1

// chunkSize bounds IN-clause parameter counts; SQLite allows 999 variables,
// 500 leaves headroom.
const chunkSize = 500

// busyTimeout bounds how long a connection waits on a locked database.
const busyTimeout = 30 * time.Second

// Cache is a SQLite-backed store of ImageInfo records. Reads may proceed
// concurrently; all writes serialize on a single process-wide lock and run
// inside a transaction. WAL journaling keeps external readers unblocked.
type Cache struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // write lock
	log    *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for degraded-operation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.log = l
	}
}

// New opens or creates the cache database at dbPath.
func New(dbPath string, opts ...Option) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c := &Cache{db: db, dbPath: dbPath, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.init(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) init() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	var current int
	err = c.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current != schemaVersion {
		if _, err := c.db.Exec(`DROP TABLE IF EXISTS images`); err != nil {
			return fmt.Errorf("failed to drop outdated schema: %w", err)
		}
	}

	_, err = c.db.Exec(`
		CREATE TABLE IF NOT EXISTS images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			file_size INTEGER NOT NULL,
			mtime_ns INTEGER NOT NULL,
			cache_key TEXT UNIQUE NOT NULL,
			width INTEGER,
			height INTEGER,
			pixel_count INTEGER,
			bit_depth INTEGER,
			format TEXT,
			has_exif INTEGER DEFAULT 0,
			file_hash TEXT,
			perceptual_hash TEXT,
			quality_score REAL,
			error TEXT,
			created_at INTEGER DEFAULT (strftime('%s', 'now')),
			last_accessed INTEGER DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_images_path ON images(path);
		CREATE INDEX IF NOT EXISTS idx_images_file_hash ON images(file_hash);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err = c.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)`,
		fmt.Sprint(schemaVersion))
	if err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// makeKey derives the cache key from path, modification time, and size.
// Any change to the file changes the key.
func makeKey(path string, mtimeNS, size int64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%d|%d", path, mtimeNS, size))
	return hex.EncodeToString(sum[:])
}

// fileKey stats the file and returns its current cache key.
func fileKey(path string) (key string, mtimeNS, size int64, err error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", 0, 0, err
	}
	mtimeNS = stat.ModTime().UnixNano()
	size = stat.Size()
	return makeKey(path, mtimeNS, size), mtimeNS, size, nil
}

// entryRow is the typed projection of one images row, converted once at the
// storage boundary.
type entryRow struct {
	path           string
	fileSize       int64
	mtimeNS        int64
	width          int
	height         int
	pixelCount     int64
	bitDepth       int
	format         string
	hasExif        int
	fileHash       sql.NullString
	perceptualHash sql.NullString
	qualityScore   float64
	errMsg         sql.NullString
}

const entryColumns = `path, file_size, mtime_ns, width, height, pixel_count,
	bit_depth, format, has_exif, file_hash, perceptual_hash, quality_score, error`

func scanEntry(scan func(dest ...any) error) (*entryRow, error) {
	var r entryRow
	err := scan(&r.path, &r.fileSize, &r.mtimeNS, &r.width, &r.height,
		&r.pixelCount, &r.bitDepth, &r.format, &r.hasExif,
		&r.fileHash, &r.perceptualHash, &r.qualityScore, &r.errMsg)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *entryRow) toInfo() *models.ImageInfo {
	return &models.ImageInfo{
		Path:           r.path,
		FileSize:       r.fileSize,
		Width:          r.width,
		Height:         r.height,
		PixelCount:     r.pixelCount,
		BitDepth:       r.bitDepth,
		Format:         r.format,
		ModTime:        time.Unix(0, r.mtimeNS),
		HasExif:        r.hasExif == 1,
		FileHash:       r.fileHash.String,
		PerceptualHash: r.perceptualHash.String,
		QualityScore:   r.qualityScore,
		Error:          r.errMsg.String,
	}
}

// Get returns the cached record for path if the file is unchanged since it
// was cached, or nil on a miss. Storage errors degrade to a miss.
func (c *Cache) Get(path string) *models.ImageInfo {
	key, _, _, err := fileKey(path)
	if err != nil {
		return nil
	}

	row, err := scanEntry(c.db.QueryRow(
		`SELECT `+entryColumns+` FROM images WHERE cache_key = ?`, key).Scan)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		c.log.Warn("cache read failed", "path", path, "error", err)
		return nil
	}

	c.touch([]string{key})
	return row.toInfo()
}

// GetBatch returns cached records for every path whose file is unchanged.
// Absent map entries are misses.
func (c *Cache) GetBatch(paths []string) map[string]*models.ImageInfo {
	results := make(map[string]*models.ImageInfo)

	keyToPath := make(map[string]string, len(paths))
	var keys []string
	for _, p := range paths {
		key, _, _, err := fileKey(p)
		if err != nil {
			continue
		}
		keyToPath[key] = p
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return results
	}

	var hitKeys []string
	for chunk := range chunked(keys) {
		rows, err := c.db.Query(
			`SELECT cache_key, `+entryColumns+` FROM images WHERE cache_key IN (`+placeholders(len(chunk))+`)`,
			toArgs(chunk)...)
		if err != nil {
			c.log.Warn("cache batch read failed", "error", err)
			return results
		}
		for rows.Next() {
			var key string
			var r entryRow
			err := rows.Scan(&key, &r.path, &r.fileSize, &r.mtimeNS, &r.width,
				&r.height, &r.pixelCount, &r.bitDepth, &r.format, &r.hasExif,
				&r.fileHash, &r.perceptualHash, &r.qualityScore, &r.errMsg)
			if err != nil {
				c.log.Warn("cache row scan failed", "error", err)
				continue
			}
			if path, ok := keyToPath[key]; ok {
				results[path] = r.toInfo()
				hitKeys = append(hitKeys, key)
			}
		}
		rows.Close()
	}

	c.touch(hitKeys)
	return results
}

// touch refreshes last_accessed for hit keys under the write lock.
func (c *Cache) touch(keys []string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.inTx(func(tx *sql.Tx) error {
		for chunk := range chunked(keys) {
			_, err := tx.Exec(
				`UPDATE images SET last_accessed = strftime('%s', 'now') WHERE cache_key IN (`+placeholders(len(chunk))+`)`,
				toArgs(chunk)...)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		c.log.Warn("cache access-time update failed", "error", err)
	}
}

// Put caches a record. Returns false (a no-op) if the file is gone or the
// write fails.
func (c *Cache) Put(info *models.ImageInfo) bool {
	return c.PutBatch([]*models.ImageInfo{info}) == 1
}

// PutBatch caches records in one transaction under the write lock and
// returns how many were stored.
func (c *Cache) PutBatch(infos []*models.ImageInfo) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := 0
	err := c.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO images (
				cache_key, path, file_size, mtime_ns, width, height,
				pixel_count, bit_depth, format, has_exif,
				file_hash, perceptual_hash, quality_score, error
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, info := range infos {
			key, mtimeNS, size, err := fileKey(info.Path)
			if err != nil {
				continue // file vanished since analysis
			}
			hasExif := 0
			if info.HasExif {
				hasExif = 1
			}
			_, err = stmt.Exec(key, info.Path, size, mtimeNS,
				info.Width, info.Height, info.PixelCount, info.BitDepth,
				info.Format, hasExif, info.FileHash, info.PerceptualHash,
				info.QualityScore, nullable(info.Error))
			if err != nil {
				return err
			}
			stored++
		}
		return nil
	})
	if err != nil {
		c.log.Warn("cache write failed", "error", err)
		return 0
	}
	return stored
}

// inTx runs fn inside a transaction, committing on success and rolling back
// on any error. Callers must hold the write lock.
func (c *Cache) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(chunk []string) []any {
	args := make([]any, len(chunk))
	for i, s := range chunk {
		args[i] = s
	}
	return args
}

// chunked yields slices of at most chunkSize items.
func chunked(items []string) func(yield func([]string) bool) {
	return func(yield func([]string) bool) {
		for i := 0; i < len(items); i += chunkSize {
			end := min(i+chunkSize, len(items))
			if !yield(items[i:end]) {
				return
			}
		}
	}
}
