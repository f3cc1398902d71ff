package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/organizer"
	"github.com/shelfstream/shelfstream/internal/scraper"
)

// Scraper runs the per-file pipeline.
type Scraper interface {
	ScrapeFile(ctx context.Context, path string, opts scraper.Options) *scraper.Result
}

// Scanner resolves a job path into video files.
type Scanner interface {
	ScanPath(path string, minSizeMB int) ([]string, error)
}

// SettingsSource supplies the live global settings.
type SettingsSource interface {
	Get() config.Settings
}

// ProgressPublisher receives run log updates for connected clients.
type ProgressPublisher interface {
	PublishProgress(jobID, taskID int64, runID string, entries []scraper.LogEntry)
}

// Worker drains the job queue, fanning each job out into scrape tasks
// that a second queue processes one file at a time.
type Worker struct {
	store    *Store
	scanner  Scanner
	scraper  Scraper
	settings SettingsSource
	progress ProgressPublisher
	logger   zerolog.Logger

	mu          sync.Mutex
	jobQueue    []int64
	jobRunning  bool
	taskQueue   []taskItem
	taskRunning bool
	wg          sync.WaitGroup
}

type taskItem struct {
	jobID       int64
	taskID      int64
	filePath    string
	mode        organizer.LinkMode
	deleteEmpty bool
	settings    config.Settings
}

// NewWorker creates the queue worker.
func NewWorker(store *Store, scanner Scanner, scrapeSvc Scraper, settings SettingsSource, progress ProgressPublisher, logger zerolog.Logger) *Worker {
	return &Worker{
		store:    store,
		scanner:  scanner,
		scraper:  scrapeSvc,
		settings: settings,
		progress: progress,
		logger:   logger.With().Str("component", "worker").Logger(),
	}
}

// Enqueue queues a job id and starts the worker goroutine when it is
// not already draining the queue.
func (w *Worker) Enqueue(jobID int64) {
	w.mu.Lock()
	w.jobQueue = append(w.jobQueue, jobID)
	start := !w.jobRunning
	if start {
		w.jobRunning = true
	}
	w.mu.Unlock()

	if start {
		w.wg.Add(1)
		go w.drainJobs()
	}
}

// Wait blocks until both queues are drained. Used in tests and on
// shutdown.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) drainJobs() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(w.jobQueue) == 0 {
			w.jobRunning = false
			w.mu.Unlock()
			return
		}
		jobID := w.jobQueue[0]
		w.jobQueue = w.jobQueue[1:]
		w.mu.Unlock()

		w.processJob(jobID)
	}
}

// processJob scans the job path and dispatches one scrape task per
// video file. The job finishes as soon as its tasks are dispatched;
// per-file outcomes land on the task rows.
func (w *Worker) processJob(jobID int64) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error().Interface("panic", rec).Int64("job_id", jobID).Msg("job processing panicked")
			_ = w.store.Finish(jobID, StatusFailed, 0, 0, 0, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	job, err := w.store.Get(jobID)
	if err != nil {
		w.logger.Error().Err(err).Int64("job_id", jobID).Msg("failed to load queued job")
		return
	}
	if job.Status == StatusCancelled {
		w.logger.Info().Int64("job_id", jobID).Msg("skipping cancelled job")
		return
	}

	if err := w.store.MarkRunning(jobID); err != nil {
		w.logger.Error().Err(err).Int64("job_id", jobID).Msg("failed to mark job running")
		return
	}

	resolved := job.AdvancedSettings.Resolve(w.settings.Get())
	if job.TargetFolder != "" {
		resolved.Organize.LibraryDir = job.TargetFolder
	}
	if job.MetadataDir != "" {
		resolved.Organize.MetadataDir = job.MetadataDir
	}

	files, err := w.scanner.ScanPath(job.Path, resolved.Organize.MinFileSizeMB)
	if err != nil {
		_ = w.store.Finish(jobID, StatusFailed, 0, 0, 0, err.Error())
		return
	}

	if err := w.store.SetTotal(jobID, len(files)); err != nil {
		w.logger.Error().Err(err).Int64("job_id", jobID).Msg("failed to set job total")
	}

	if len(files) == 0 {
		_ = w.store.Finish(jobID, StatusSuccess, 0, 0, 0, "no video files found")
		return
	}

	dispatched := 0
	for _, file := range files {
		taskID, err := w.store.CreateTask(jobID, file)
		if err != nil {
			w.logger.Error().Err(err).Int64("job_id", jobID).Str("file", file).Msg("failed to create task")
			continue
		}
		w.enqueueTask(taskItem{
			jobID:       jobID,
			taskID:      taskID,
			filePath:    file,
			mode:        job.LinkMode,
			deleteEmpty: job.DeleteEmptyParent,
			settings:    resolved,
		})
		dispatched++
	}

	_ = w.store.Finish(jobID, StatusSuccess, dispatched, 0, len(files)-dispatched, "")
	w.logger.Info().Int64("job_id", jobID).Int("files", dispatched).Msg("job dispatched")
}

func (w *Worker) enqueueTask(item taskItem) {
	w.mu.Lock()
	w.taskQueue = append(w.taskQueue, item)
	start := !w.taskRunning
	if start {
		w.taskRunning = true
	}
	w.mu.Unlock()

	if start {
		w.wg.Add(1)
		go w.drainTasks()
	}
}

func (w *Worker) drainTasks() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		if len(w.taskQueue) == 0 {
			w.taskRunning = false
			w.mu.Unlock()
			return
		}
		item := w.taskQueue[0]
		w.taskQueue = w.taskQueue[1:]
		w.mu.Unlock()

		w.processTask(item)
	}
}

// processTask runs the scrape pipeline for one file and persists the
// outcome with its run log.
func (w *Worker) processTask(item taskItem) {
	if err := w.store.StartTask(item.taskID); err != nil {
		w.logger.Error().Err(err).Int64("task_id", item.taskID).Msg("failed to start task")
	}

	// Queued jobs run unattended, so a lone search candidate is taken
	// without asking.
	opts := scraper.Options{
		AutoSelect:        true,
		LinkMode:          item.mode,
		DeleteEmptyParent: item.deleteEmpty,
		Settings:          item.settings,
	}
	if w.progress != nil {
		opts.OnUpdate = func(runID string, entries []scraper.LogEntry) {
			w.progress.PublishProgress(item.jobID, item.taskID, runID, entries)
		}
	}

	result := w.scraper.ScrapeFile(context.Background(), item.filePath, opts)

	logJSON := ""
	if raw, err := json.Marshal(result.Log); err == nil {
		logJSON = string(raw)
	}

	errMessage := ""
	if result.Status != scraper.StatusSuccess {
		errMessage = result.Message
	}

	if err := w.store.FinishTask(item.taskID, string(result.Status), logJSON, errMessage); err != nil {
		w.logger.Error().Err(err).Int64("task_id", item.taskID).Msg("failed to persist task result")
	}
}
