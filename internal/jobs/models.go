// Package jobs queues manual scrape jobs, fans them out into per-file
// scrape tasks and runs both through background workers.
package jobs

import (
	"time"

	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/organizer"
)

// Status is a job or task lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a finished state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Job source values.
const (
	SourceManual  = "manual"
	SourceWatcher = "watcher"
)

// Job is one manual_jobs row.
type Job struct {
	ID                int64              `json:"id"`
	Path              string             `json:"path"`
	TargetFolder      string             `json:"target_folder,omitempty"`
	LinkMode          organizer.LinkMode `json:"link_mode"`
	Status            Status             `json:"status"`
	TotalCount        int                `json:"total_count"`
	SuccessCount      int                `json:"success_count"`
	SkipCount         int                `json:"skip_count"`
	ErrorCount        int                `json:"error_count"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	MetadataDir       string             `json:"metadata_dir,omitempty"`
	DeleteEmptyParent bool               `json:"delete_empty_parent"`
	ConfigReuseID     *int64             `json:"config_reuse_id,omitempty"`
	Source            string             `json:"source"`
	AdvancedSettings  *AdvancedSettings  `json:"advanced_settings,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	FinishedAt        *time.Time         `json:"finished_at,omitempty"`
}

// Task is one scrape_tasks row.
type Task struct {
	ID           int64      `json:"id"`
	JobID        int64      `json:"job_id"`
	FilePath     string     `json:"file_path"`
	Status       string     `json:"status"`
	Log          string     `json:"log,omitempty"` // JSON-encoded run log
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// AdvancedSettings are per-job overrides stored as JSON on the job row.
// Each category carries its own use_global flag; a set flag (or a nil
// override) means the job follows the live global settings for that
// category only.
type AdvancedSettings struct {
	UseGlobalOrganize bool                     `json:"use_global_organize"`
	UseGlobalNaming   bool                     `json:"use_global_naming"`
	UseGlobalDownload bool                     `json:"use_global_download"`
	UseGlobalMetadata bool                     `json:"use_global_metadata"`
	LibraryDir        *string                  `json:"library_dir,omitempty"`
	MinFileSizeMB     *int                     `json:"min_file_size_mb,omitempty"`
	Naming            *config.NamingSettings   `json:"naming,omitempty"`
	Download          *config.DownloadSettings `json:"download,omitempty"`
	Metadata          *config.MetadataSettings `json:"metadata,omitempty"`
}

// Resolve flattens the per-category overrides onto the global settings.
func (a *AdvancedSettings) Resolve(global config.Settings) config.Settings {
	out := global
	if a == nil {
		return out
	}

	if !a.UseGlobalOrganize {
		if a.LibraryDir != nil {
			out.Organize.LibraryDir = *a.LibraryDir
		}
		if a.MinFileSizeMB != nil {
			out.Organize.MinFileSizeMB = *a.MinFileSizeMB
		}
	}
	if !a.UseGlobalNaming && a.Naming != nil {
		out.Naming = *a.Naming
	}
	if !a.UseGlobalDownload && a.Download != nil {
		out.Download = *a.Download
	}
	if !a.UseGlobalMetadata && a.Metadata != nil {
		out.Metadata = *a.Metadata
	}
	return out
}

// CreateRequest describes a new job.
type CreateRequest struct {
	Path              string             `json:"path"`
	TargetFolder      string             `json:"target_folder,omitempty"`
	LinkMode          organizer.LinkMode `json:"link_mode"`
	MetadataDir       string             `json:"metadata_dir,omitempty"`
	DeleteEmptyParent bool               `json:"delete_empty_parent"`
	ConfigReuseID     *int64             `json:"config_reuse_id,omitempty"`
	Source            string             `json:"source,omitempty"`
	AdvancedSettings  *AdvancedSettings  `json:"advanced_settings,omitempty"`
}
