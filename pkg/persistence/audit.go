package persistence

import (
	"database/sql"
	"fmt"
	"time"
)

// CycleRecord is one stored correction cycle.
type CycleRecord struct {
	ID              string
	Language        string
	Framework       string
	StartedAt       time.Time
	FinishedAt      sql.NullTime
	Termination     string
	Iterations      int
	InitialFailures int
	FinalFailures   int
	FinalVersionID  string
}

// IterationRecord is one stored iteration of a cycle.
type IterationRecord struct {
	CycleID         string
	Num             int
	VersionID       string
	ParentVersionID string
	Total           int
	Passed          int
	Failed          int
	ImprovementPct  float64
	Duration        time.Duration
}

// FixRecord is one stored fix attempt.
type FixRecord struct {
	CycleID    string
	Iteration  int
	TargetFile string
	Strategy   string
	Confidence float64
	Applied    bool
	Reason     string
	Rationale  string
}

// RecordCycleStart inserts a new cycle row. Callers writing the trail after
// the fact pass the cycle's actual start time, not the insertion time.
func (s *Store) RecordCycleStart(cycleID, language, framework string, startedAt time.Time, initialFailures int) error {
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO cycles (id, language, framework, started_at, initial_failures)
		VALUES (?, ?, ?, ?, ?)`,
		cycleID, language, framework, startedAt.UTC(), initialFailures,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle start: %w", err)
	}
	return nil
}

// RecordCycleEnd finalizes a cycle row with its outcome.
func (s *Store) RecordCycleEnd(cycleID, termination, finalVersionID string, iterations, finalFailures int) error {
	result, err := s.db.Exec(`
		UPDATE cycles
		SET finished_at = ?, termination = ?, final_version_id = ?, iterations = ?, final_failures = ?
		WHERE id = ?`,
		time.Now().UTC(), termination, finalVersionID, iterations, finalFailures, cycleID,
	)
	if err != nil {
		return fmt.Errorf("failed to record cycle end: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("cycle %s not found", cycleID)
	}
	return nil
}

// RecordIteration appends one iteration's outcome to a cycle.
func (s *Store) RecordIteration(rec *IterationRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO iterations (cycle_id, num, version_id, parent_version_id, total, passed, failed, improvement_pct, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.Num, rec.VersionID, rec.ParentVersionID,
		rec.Total, rec.Passed, rec.Failed, rec.ImprovementPct, rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record iteration %d: %w", rec.Num, err)
	}
	return nil
}

// RecordFix appends one fix attempt, applied or rejected.
func (s *Store) RecordFix(rec *FixRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO fixes (cycle_id, iteration, target_file, strategy, confidence, applied, reason, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.Iteration, rec.TargetFile, rec.Strategy, rec.Confidence,
		rec.Applied, rec.Reason, rec.Rationale,
	)
	if err != nil {
		return fmt.Errorf("failed to record fix: %w", err)
	}
	return nil
}

// GetCycle loads one cycle row by ID.
func (s *Store) GetCycle(cycleID string) (*CycleRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, language, framework, started_at, finished_at,
		       COALESCE(termination, ''), iterations, initial_failures, final_failures,
		       COALESCE(final_version_id, '')
		FROM cycles WHERE id = ?`, cycleID)

	var rec CycleRecord
	err := row.Scan(&rec.ID, &rec.Language, &rec.Framework, &rec.StartedAt, &rec.FinishedAt,
		&rec.Termination, &rec.Iterations, &rec.InitialFailures, &rec.FinalFailures,
		&rec.FinalVersionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycle %s: %w", cycleID, err)
	}
	return &rec, nil
}

// GetIterations loads a cycle's iterations in order.
func (s *Store) GetIterations(cycleID string) ([]*IterationRecord, error) {
	rows, err := s.db.Query(`
		SELECT cycle_id, num, version_id, COALESCE(parent_version_id, ''),
		       total, passed, failed, improvement_pct, duration_ms
		FROM iterations WHERE cycle_id = ? ORDER BY num`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load iterations for %s: %w", cycleID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*IterationRecord
	for rows.Next() {
		var rec IterationRecord
		var durationMs int64
		if err := rows.Scan(&rec.CycleID, &rec.Num, &rec.VersionID, &rec.ParentVersionID,
			&rec.Total, &rec.Passed, &rec.Failed, &rec.ImprovementPct, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan iteration: %w", err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iteration rows: %w", err)
	}
	return records, nil
}

// GetFixes loads a cycle's fix attempts in insertion order.
func (s *Store) GetFixes(cycleID string) ([]*FixRecord, error) {
	rows, err := s.db.Query(`
		SELECT cycle_id, iteration, target_file, strategy, confidence, applied,
		       COALESCE(reason, ''), COALESCE(rationale, '')
		FROM fixes WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fixes for %s: %w", cycleID, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*FixRecord
	for rows.Next() {
		var rec FixRecord
		if err := rows.Scan(&rec.CycleID, &rec.Iteration, &rec.TargetFile, &rec.Strategy,
			&rec.Confidence, &rec.Applied, &rec.Reason, &rec.Rationale); err != nil {
			return nil, fmt.Errorf("failed to scan fix: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fix rows: %w", err)
	}
	return records, nil
}
