package config

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

const settingsKey = "settings"

// Store holds the live runtime settings. Reads are cheap; services
// fetch a snapshot per call so token or template changes take effect
// without restarts. Updates are persisted to the settings table.
type Store struct {
	mu       sync.RWMutex
	settings Settings
	db       *sql.DB
	logger   zerolog.Logger
}

// NewStore creates a settings store seeded from cfg, overlaid with any
// settings previously persisted to the database.
func NewStore(db *sql.DB, seed Settings, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		settings: seed,
		db:       db,
		logger:   logger.With().Str("component", "settings").Logger(),
	}

	var raw string
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First run, keep seed values
	case err != nil:
		return nil, fmt.Errorf("failed to load settings: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &s.settings); err != nil {
			s.logger.Warn().Err(err).Msg("stored settings unreadable, using defaults")
			s.settings = seed
		}
	}

	return s, nil
}

// Get returns a snapshot of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Update replaces the current settings and persists them.
func (s *Store) Update(settings Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		settingsKey, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to persist settings: %w", err)
	}

	s.settings = settings
	s.logger.Info().Msg("settings updated")
	return nil
}

// TMDB returns the current metadata client settings.
func (s *Store) TMDB() TMDBSettings {
	return s.Get().TMDB
}

// Emby returns the current conflict check settings.
func (s *Store) Emby() EmbySettings {
	return s.Get().Emby
}
