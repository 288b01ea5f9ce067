package cache

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"
)

// Info describes the cache's current contents.
type Info struct {
	Entries   int
	SizeBytes int64
	Path      string
}

// Invalidate removes the entry for one path.
func (c *Cache) Invalidate(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM images WHERE path = ?`, path)
		return err
	})
}

// InvalidateDir removes all entries for files under a directory.
func (c *Cache) InvalidateDir(dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := strings.TrimSuffix(dir, string(os.PathSeparator)) + string(os.PathSeparator)
	return c.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM images WHERE path LIKE ?`, prefix+"%")
		return err
	})
}

// CleanupMissing drops entries whose backing file no longer exists and
// returns how many were removed.
func (c *Cache) CleanupMissing() (int, error) {
	rows, err := c.db.Query(`SELECT path FROM images`)
	if err != nil {
		return 0, fmt.Errorf("failed to list cached paths: %w", err)
	}
	var missing []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan path: %w", err)
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			missing = append(missing, path)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.inTx(func(tx *sql.Tx) error {
		for chunk := range chunked(missing) {
			_, err := tx.Exec(
				`DELETE FROM images WHERE path IN (`+placeholders(len(chunk))+`)`,
				toArgs(chunk)...)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete missing entries: %w", err)
	}
	return len(missing), nil
}

// CleanupStale drops entries not accessed within maxAge and returns how
// many were removed.
func (c *Cache) CleanupStale(maxAge time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).Unix()
	var removed int64
	err := c.inTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM images WHERE last_accessed < ?`, cutoff)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale entries: %w", err)
	}
	return int(removed), nil
}

// Stats reports entry count and on-disk size.
func (c *Cache) Stats() (Info, error) {
	info := Info{Path: c.dbPath}
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM images`).Scan(&info.Entries); err != nil {
		return info, fmt.Errorf("failed to count entries: %w", err)
	}
	if stat, err := os.Stat(c.dbPath); err == nil {
		info.SizeBytes = stat.Size()
	}
	return info, nil
}

// Clear removes all cached entries and compacts the file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	err := c.inTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM images`)
		return err
	})
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return c.Compact()
}

// Compact reclaims unused space. VACUUM must run outside a transaction.
func (c *Cache) Compact() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("failed to compact cache: %w", err)
	}
	return nil
}
