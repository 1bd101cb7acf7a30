package journal

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/neocrisis/internal/monitoring"
	"github.com/banshee-data/neocrisis/internal/security"
)

// Backup writes a consistent snapshot of the journal into dir and returns
// the file's path.
func (j *Journal) Backup(ctx context.Context, dir string, at time.Time) (string, error) {
	base := strings.TrimSuffix(filepath.Base(j.path), filepath.Ext(j.path))
	name := security.SanitizeFilename(fmt.Sprintf("%s-backup-%d.db", base, at.Unix()))
	path := filepath.Join(dir, name)
	if err := security.WithinDirectory(path, dir); err != nil {
		return "", err
	}
	if _, err := j.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return "", fmt.Errorf("failed to back up journal: %w", err)
	}
	return path, nil
}

// serveBackup streams a gzip-compressed snapshot and removes it afterwards.
func (j *Journal) serveBackup(w http.ResponseWriter, r *http.Request) {
	path, err := j.Backup(r.Context(), filepath.Dir(j.path), time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			monitoring.Opsf("journal: failed to remove backup %s: %v", path, err)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to open backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, f); err != nil {
		monitoring.Opsf("journal: backup download interrupted: %v", err)
	}
}
