package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var csvHeader = []string{"timestamp", "feedback_text", "observation", "feeling", "need", "request", "trust_score"}

// CSVLog appends submissions to a flat CSV file. The header is written once,
// when the file is first created.
type CSVLog struct {
	path string
	mu   sync.Mutex
}

// OpenCSVLog prepares the CSV file at path, creating parent directories.
func OpenCSVLog(path string) (*CSVLog, error) {
	if path == "" {
		return nil, errors.New("csv path required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create csv directory: %w", err)
		}
	}
	return &CSVLog{path: path}, nil
}

// Path returns the backing file location.
func (l *CSVLog) Path() string {
	return l.path
}

// Append writes one submission row.
func (l *CSVLog) Append(s Submission) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	record := []string{
		created.UTC().Format(time.RFC3339),
		s.FeedbackText,
		deref(s.Observation),
		deref(s.Feeling),
		deref(s.Need),
		deref(s.Request),
		"",
	}
	if s.TrustScore != nil {
		record[6] = strconv.FormatFloat(*s.TrustScore, 'f', -1, 64)
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
