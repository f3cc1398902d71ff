package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/filescan"
	"github.com/shelfstream/shelfstream/internal/organizer"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobNotTerminal = errors.New("job is still pending or running")
	ErrInvalidRequest = errors.New("invalid job request")
)

const jobColumns = `id, path, target_folder, link_mode, status, total_count,
	success_count, skip_count, error_count, error_message, metadata_dir,
	delete_empty_parent, config_reuse_id, source, advanced_settings,
	created_at, started_at, finished_at`

// Store persists jobs and tasks in sqlite.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a job store over the shared database handle.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "jobs").Logger(),
	}
}

// Create validates and inserts a new pending job.
func (s *Store) Create(req CreateRequest) (*Job, error) {
	if err := filescan.ValidatePath(req.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.LinkMode == 0 {
		req.LinkMode = organizer.ModeHardlink
	}
	if !req.LinkMode.Valid() {
		return nil, fmt.Errorf("%w: unknown link mode %d", ErrInvalidRequest, req.LinkMode)
	}
	if req.Source == "" {
		req.Source = SourceManual
	}

	// A reuse id pulls the advanced settings from an earlier job when
	// the request brings none of its own.
	if req.ConfigReuseID != nil && req.AdvancedSettings == nil {
		prev, err := s.Get(*req.ConfigReuseID)
		if err != nil {
			return nil, fmt.Errorf("%w: config_reuse_id %d: %v", ErrInvalidRequest, *req.ConfigReuseID, err)
		}
		req.AdvancedSettings = prev.AdvancedSettings
	}

	var advanced sql.NullString
	if req.AdvancedSettings != nil {
		raw, err := json.Marshal(req.AdvancedSettings)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		advanced = sql.NullString{String: string(raw), Valid: true}
	}

	var reuseID sql.NullInt64
	if req.ConfigReuseID != nil {
		reuseID = sql.NullInt64{Int64: *req.ConfigReuseID, Valid: true}
	}

	res, err := s.db.Exec(
		`INSERT INTO manual_jobs (path, target_folder, link_mode, status, metadata_dir,
		 delete_empty_parent, config_reuse_id, source, advanced_settings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Path, req.TargetFolder, int(req.LinkMode), string(StatusPending), req.MetadataDir,
		req.DeleteEmptyParent, reuseID, req.Source, advanced,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read job id: %w", err)
	}

	s.logger.Info().Int64("job_id", id).Str("path", req.Path).Str("mode", req.LinkMode.String()).Msg("job created")
	return s.Get(id)
}

// Get returns one job by id.
func (s *Store) Get(id int64) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM manual_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + jobColumns + ` FROM manual_jobs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes a finished job and, via cascade, its tasks.
func (s *Store) Delete(id int64) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}
	if !job.Status.Terminal() {
		return ErrJobNotTerminal
	}

	if _, err := s.db.Exec(`DELETE FROM manual_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	s.logger.Info().Int64("job_id", id).Msg("job deleted")
	return nil
}

// Cancel marks a pending job cancelled. Running jobs cannot be stopped.
func (s *Store) Cancel(id int64) error {
	res, err := s.db.Exec(
		`UPDATE manual_jobs SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`,
		string(StatusCancelled), id, string(StatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrJobNotTerminal
	}
	return nil
}

// MarkRunning transitions a job to running and stamps started_at.
func (s *Store) MarkRunning(id int64) error {
	_, err := s.db.Exec(
		`UPDATE manual_jobs SET status = ?, started_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(StatusRunning), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// SetTotal records how many files the job covers.
func (s *Store) SetTotal(id int64, total int) error {
	_, err := s.db.Exec(`UPDATE manual_jobs SET total_count = ? WHERE id = ?`, total, id)
	if err != nil {
		return fmt.Errorf("failed to set job total: %w", err)
	}
	return nil
}

// Finish stamps the terminal state and counters of a job.
func (s *Store) Finish(id int64, status Status, successCount, skipCount, errorCount int, errorMessage string) error {
	_, err := s.db.Exec(
		`UPDATE manual_jobs SET status = ?, success_count = ?, skip_count = ?,
		 error_count = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), successCount, skipCount, errorCount, nullableString(errorMessage), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	return nil
}

// DeleteFinishedBefore removes finished jobs older than the cutoff and
// returns how many rows went away.
func (s *Store) DeleteFinishedBefore(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(
		`DELETE FROM manual_jobs
		 WHERE status IN (?, ?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(StatusSuccess), string(StatusFailed), string(StatusCancelled),
		cutoff.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("swept finished jobs")
	}
	return n, nil
}

// CreateTask inserts a pending scrape task for one file.
func (s *Store) CreateTask(jobID int64, filePath string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO scrape_tasks (job_id, file_path, status) VALUES (?, ?, ?)`,
		jobID, filePath, string(StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}
	return res.LastInsertId()
}

// StartTask marks a task running.
func (s *Store) StartTask(id int64) error {
	_, err := s.db.Exec(
		`UPDATE scrape_tasks SET status = ?, started_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(StatusRunning), id,
	)
	if err != nil {
		return fmt.Errorf("failed to start task: %w", err)
	}
	return nil
}

// FinishTask records the scrape outcome and run log for a task.
func (s *Store) FinishTask(id int64, status, logJSON, errorMessage string) error {
	_, err := s.db.Exec(
		`UPDATE scrape_tasks SET status = ?, log = ?, error_message = ?,
		 finished_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, nullableString(logJSON), nullableString(errorMessage), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	return nil
}

// Tasks returns a job's tasks in creation order.
func (s *Store) Tasks(jobID int64) ([]*Task, error) {
	rows, err := s.db.Query(
		`SELECT id, job_id, file_path, status, log, error_message, created_at, started_at, finished_at
		 FROM scrape_tasks WHERE job_id = ? ORDER BY id`, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		var (
			task       Task
			logJSON    sql.NullString
			errMessage sql.NullString
			startedAt  sql.NullTime
			finishedAt sql.NullTime
		)
		if err := rows.Scan(&task.ID, &task.JobID, &task.FilePath, &task.Status,
			&logJSON, &errMessage, &task.CreatedAt, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		task.Log = logJSON.String
		task.ErrorMessage = errMessage.String
		if startedAt.Valid {
			task.StartedAt = &startedAt.Time
		}
		if finishedAt.Valid {
			task.FinishedAt = &finishedAt.Time
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job          Job
		targetFolder sql.NullString
		linkMode     int
		status       string
		errMessage   sql.NullString
		metaDir      sql.NullString
		deleteEmpty  sql.NullBool
		reuseID      sql.NullInt64
		source       sql.NullString
		advanced     sql.NullString
		startedAt    sql.NullTime
		finishedAt   sql.NullTime
	)

	err := row.Scan(&job.ID, &job.Path, &targetFolder, &linkMode, &status, &job.TotalCount,
		&job.SuccessCount, &job.SkipCount, &job.ErrorCount, &errMessage, &metaDir,
		&deleteEmpty, &reuseID, &source, &advanced, &job.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	job.TargetFolder = targetFolder.String
	job.LinkMode = organizer.LinkMode(linkMode)
	job.Status = Status(status)
	job.ErrorMessage = errMessage.String
	job.MetadataDir = metaDir.String
	job.DeleteEmptyParent = deleteEmpty.Bool
	if reuseID.Valid {
		job.ConfigReuseID = &reuseID.Int64
	}
	job.Source = source.String
	if job.Source == "" {
		job.Source = SourceManual
	}
	if advanced.Valid && advanced.String != "" {
		var settings AdvancedSettings
		if err := json.Unmarshal([]byte(advanced.String), &settings); err == nil {
			job.AdvancedSettings = &settings
		}
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}
	return &job, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
