package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite-backed database at the provided path.
func Open(path string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(path), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Submission{}, &AnalysisRecord{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		logrus.WithError(err).Warn("enable WAL mode")
	}
	if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
		logrus.WithError(err).Warn("set synchronous pragma")
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSubmission inserts a submitted feedback row.
func (d *Database) SaveSubmission(s *Submission) error {
	if s == nil {
		return errors.New("submission is nil")
	}
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("submission id required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(s).Error
}

// ListSubmissions returns a page of submissions, newest first, and the total count.
func (d *Database) ListSubmissions(offset, limit int) ([]Submission, int64, error) {
	var total int64
	if err := d.gorm.Model(&Submission{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	q := d.gorm.Model(&Submission{}).Order("created_at DESC").Order("id ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	var rows []Submission
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// SaveAnalysis records how an analysis request was resolved. A repeated
// request id overwrites the earlier row.
func (d *Database) SaveAnalysis(r *AnalysisRecord) error {
	if r == nil {
		return errors.New("analysis record is nil")
	}
	if r.RepairsJSON == "" {
		r.SetRepairs(nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"runtime", "action", "trust_score", "failure_flag", "score", "repairs_json", "raw_length", "duration_ms"}),
	}).Create(r).Error
}

// CountAnalysesByFlag returns how many analyses fell back with each failure
// flag. Successful analyses are counted under the empty flag.
func (d *Database) CountAnalysesByFlag() (map[string]int64, error) {
	var rows []struct {
		FailureFlag string
		Total       int64
	}
	if err := d.gorm.Model(&AnalysisRecord{}).
		Select("failure_flag, COUNT(*) AS total").
		Group("failure_flag").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.FailureFlag] = row.Total
	}
	return out, nil
}
