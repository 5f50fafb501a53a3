// Package logfile writes a recipe session's log to disk and saves permanent
// copies of it on request.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// timestampLayout is appended to saved log names when a timestamp is asked
// for.
const timestampLayout = "20060102T150405"

// Name returns the working log file name for a session user.
func Name(userID string) string {
	return fmt.Sprintf("__recipe__.%s.log", userID)
}

// Writer is the session's working log file. It implements io.Writer for
// Session.Log and aqueduct.LogSaver for Session.SaveLogFile.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	saveDir string
	now     func() time.Time
}

// Open creates (or truncates) the working log for userID in dir. Saved
// copies go to saveDir, which defaults to dir.
func Open(dir, saveDir, userID string) (*Writer, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}
	if saveDir == "" {
		saveDir = dir
	}
	for _, d := range []string{dir, saveDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", d, err)
		}
	}

	path := filepath.Join(dir, Name(userID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Writer{file: f, path: path, saveDir: saveDir, now: time.Now}, nil
}

// Path is the working log file location.
func (w *Writer) Path() string { return w.path }

func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return 0, os.ErrClosed
	}
	return w.file.Write(p)
}

// Close closes the working log. Saved copies are unaffected.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Save copies the working log to the save directory as filename.log and
// returns the path written. With timestamp the name gets a
// _YYYYmmddTHHMMSS suffix. Without overwrite an existing file is kept and
// the copy gets the first free _N suffix instead.
func (w *Writer) Save(filename string, timestamp, overwrite bool) (string, error) {
	base := strings.TrimSuffix(filepath.Base(strings.TrimSpace(filename)), ".log")
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid log file name: %q", filename)
	}
	if timestamp {
		base += "_" + w.now().Format(timestampLayout)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return "", fmt.Errorf("failed to flush log file: %w", err)
		}
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return "", fmt.Errorf("failed to read log file: %w", err)
	}

	target := filepath.Join(w.saveDir, base+".log")
	if !overwrite {
		for n := 1; exists(target); n++ {
			target = filepath.Join(w.saveDir, fmt.Sprintf("%s_%d.log", base, n))
		}
	}

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save log file: %w", err)
	}
	return target, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
