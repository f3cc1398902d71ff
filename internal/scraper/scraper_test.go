package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/artwork"
	"github.com/shelfstream/shelfstream/internal/config"
	"github.com/shelfstream/shelfstream/internal/emby"
	"github.com/shelfstream/shelfstream/internal/nfo"
	"github.com/shelfstream/shelfstream/internal/organizer"
	"github.com/shelfstream/shelfstream/internal/parser"
	"github.com/shelfstream/shelfstream/internal/subtitle"
	"github.com/shelfstream/shelfstream/internal/tmdb"
)

type stubProvider struct {
	cfg config.Settings
}

func (p *stubProvider) TMDB() config.TMDBSettings { return p.cfg.TMDB }
func (p *stubProvider) Emby() config.EmbySettings { return p.cfg.Emby }

func testSettings(libraryDir string) config.Settings {
	s := config.DefaultSettings()
	s.TMDB.Token = "test-key"
	s.TMDB.Language = "en-US"
	s.Organize.LibraryDir = libraryDir
	s.Download = config.DownloadSettings{}
	s.Emby = config.EmbySettings{}
	return s
}

func newTestService(apiURL string, settings config.Settings) *Service {
	provider := &stubProvider{cfg: settings}
	tc := tmdb.NewClient(provider, zerolog.Nop())
	tc.SetBaseURLs(apiURL, apiURL+"/img")
	org := organizer.NewService(zerolog.Nop())
	return NewService(
		parser.NewService(zerolog.Nop()),
		tc,
		nfo.NewWriter(zerolog.Nop()),
		org,
		subtitle.NewService(org, zerolog.Nop()),
		artwork.NewDownloader(tc, zerolog.Nop()),
		emby.NewClient(provider, zerolog.Nop()),
		zerolog.Nop(),
	)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeSource(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}
}

func seriesJSON(id int, name string, episodes int) map[string]interface{} {
	return map[string]interface{}{
		"id":                 id,
		"name":               name,
		"original_name":      name,
		"overview":           "A chemistry teacher turns to crime.",
		"first_air_date":     "2008-01-20",
		"status":             "Ended",
		"number_of_seasons":  1,
		"number_of_episodes": episodes,
		"genres":             []map[string]interface{}{{"id": 18, "name": "Drama"}},
		"seasons": []map[string]interface{}{
			{"id": 3572, "name": "Season 1", "season_number": 1, "episode_count": episodes, "air_date": "2008-01-20"},
		},
	}
}

func seasonJSON() map[string]interface{} {
	return map[string]interface{}{
		"id":            3572,
		"name":          "Season 1",
		"season_number": 1,
		"air_date":      "2008-01-20",
		"episodes": []map[string]interface{}{
			{"id": 62086, "name": "Gray Matter", "overview": "Walt refuses help.",
				"air_date": "2008-02-24", "season_number": 1, "episode_number": 2, "runtime": 48},
		},
	}
}

// tmdbServer serves fixtures for one series with a single season.
func tmdbServer(results ...map[string]interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/tv":
			writeJSON(w, map[string]interface{}{"results": results})
		case strings.HasSuffix(r.URL.Path, "/season/1"):
			writeJSON(w, seasonJSON())
		case r.URL.Path == "/tv/1396":
			writeJSON(w, seriesJSON(1396, "Breaking Bad", 62))
		case strings.HasPrefix(r.URL.Path, "/tv/"):
			writeJSON(w, seriesJSON(10, "Other Show", 12))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func oneResult() map[string]interface{} {
	return map[string]interface{}{
		"id": 1396, "name": "Breaking Bad", "original_name": "Breaking Bad",
		"first_air_date": "2008-01-20", "adult": true,
	}
}

func TestScrapeFileSuccess(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	sourceDir := t.TempDir()
	libraryDir := t.TempDir()
	source := filepath.Join(sourceDir, "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)
	sub := filepath.Join(sourceDir, "Breaking.Bad.S01E02.eng.srt")
	if err := os.WriteFile(sub, []byte("subs"), 0644); err != nil {
		t.Fatal(err)
	}

	var updates int
	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		LinkMode:   organizer.ModeCopy,
		Settings:   testSettings(libraryDir),
		OnUpdate:   func(runID string, entries []LogEntry) { updates++ },
	})

	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success", result.Status, result.Message)
	}

	wantDest := filepath.Join(libraryDir,
		"Breaking Bad (2008) [tmdbid-1396]", "Season 1",
		"Breaking Bad - S01E02 - Gray Matter.mkv")
	if result.DestPath != wantDest {
		t.Errorf("DestPath = %q, want %q", result.DestPath, wantDest)
	}
	if _, err := os.Stat(wantDest); err != nil {
		t.Errorf("placed file missing: %v", err)
	}

	seriesDir := filepath.Dir(filepath.Dir(wantDest))
	if _, err := os.Stat(filepath.Join(seriesDir, "tvshow.nfo")); err != nil {
		t.Errorf("tvshow.nfo missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(wantDest), "season.nfo")); err != nil {
		t.Errorf("season.nfo missing: %v", err)
	}
	episodeNFO := strings.TrimSuffix(wantDest, ".mkv") + ".nfo"
	if _, err := os.Stat(episodeNFO); err != nil {
		t.Errorf("episode nfo missing: %v", err)
	}

	placedSub := strings.TrimSuffix(wantDest, ".mkv") + ".eng.srt"
	if _, err := os.Stat(placedSub); err != nil {
		t.Errorf("subtitle not placed: %v", err)
	}

	if updates == 0 {
		t.Error("OnUpdate never fired")
	}
	if result.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestScrapeFileNeedSelection(t *testing.T) {
	other := map[string]interface{}{
		"id": 10, "name": "Breaking Bad 2", "original_name": "Breaking Bad 2",
		"first_air_date": "2010-01-01", "adult": true,
	}
	server := tmdbServer(oneResult(), other)
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusNeedSelection {
		t.Fatalf("Status = %q, want need_selection", result.Status)
	}
	if len(result.Candidates) != 2 {
		t.Errorf("Candidates = %d, want 2", len(result.Candidates))
	}
	if result.Candidates[0].NumberOfEpisodes == nil {
		t.Error("candidates not enriched with episode counts")
	}
}

func TestScrapeFileSelectionRequiredWithoutAutoSelect(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		Settings: testSettings(libraryDir),
	})

	if result.Status != StatusNeedSelection {
		t.Fatalf("Status = %q, want need_selection for a lone candidate without auto-select", result.Status)
	}
	if len(result.Candidates) != 1 {
		t.Errorf("Candidates = %d, want 1", len(result.Candidates))
	}
}

func TestScrapeFileUnrecognizedName(t *testing.T) {
	server := tmdbServer()
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "A", "S01E02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusNoMatch {
		t.Errorf("Status = %q, want no_match", result.Status)
	}
}

func TestScrapeFileNoResults(t *testing.T) {
	server := tmdbServer()
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "Completely Unknown", "Completely.Unknown.S01E02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusNoMatch {
		t.Errorf("Status = %q, want no_match for an empty result set", result.Status)
	}
}

func TestScrapeFileNonAdultResultsIgnored(t *testing.T) {
	mainstream := map[string]interface{}{
		"id": 1396, "name": "Breaking Bad", "original_name": "Breaking Bad",
		"first_air_date": "2008-01-20",
	}
	server := tmdbServer(mainstream)
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusNoMatch {
		t.Errorf("Status = %q, want no_match when no result is adult-flagged", result.Status)
	}
}

func TestScrapeFileMissingSource(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	libraryDir := t.TempDir()
	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), filepath.Join(t.TempDir(), "gone.mkv"), Options{
		AutoSelect: true,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusMoveFailed {
		t.Fatalf("Status = %q, want move_failed for a missing source", result.Status)
	}
	if !strings.Contains(result.Message, "file not found") {
		t.Errorf("Message = %q, want file not found", result.Message)
	}
}

func TestScrapeFileNeedSeasonEpisode(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "Breaking Bad.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusNeedSeasonEpisode {
		t.Fatalf("Status = %q, want need_season_episode", result.Status)
	}
	if len(result.SeasonInfo) == 0 {
		t.Error("SeasonInfo missing for selection context")
	}
}

func TestScrapeFileFileConflict(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	sourceDir := t.TempDir()
	libraryDir := t.TempDir()
	source := filepath.Join(sourceDir, "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	dest := filepath.Join(libraryDir,
		"Breaking Bad (2008) [tmdbid-1396]", "Season 1",
		"Breaking Bad - S01E02 - Gray Matter.mkv")
	writeSource(t, dest)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		LinkMode:   organizer.ModeMove,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusFileConflict {
		t.Fatalf("Status = %q, want file_conflict", result.Status)
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("source file was consumed despite conflict")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dest), "season.nfo")); !os.IsNotExist(err) {
		t.Error("NFO written despite conflict")
	}
}

func TestScrapeFileEpisodeNFOFailed(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	sourceDir := t.TempDir()
	libraryDir := t.TempDir()
	source := filepath.Join(sourceDir, "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	// A file where the series folder should go blocks every NFO write.
	blocker := filepath.Join(libraryDir, "Breaking Bad (2008) [tmdbid-1396]")
	if err := os.WriteFile(blocker, []byte("in the way"), 0644); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		LinkMode:   organizer.ModeMove,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusNFOFailed {
		t.Fatalf("Status = %q (%s), want nfo_failed", result.Status, result.Message)
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("source file was consumed despite NFO failure")
	}
}

func TestScrapeFileEmbyConflict(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	embyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/emby/Items":
			writeJSON(w, map[string]interface{}{"Items": []map[string]interface{}{
				{"Id": "abc", "Name": "Breaking Bad", "ProviderIds": map[string]string{"Tmdb": "1396"}},
			}})
		default:
			writeJSON(w, map[string]interface{}{"Items": []map[string]interface{}{
				{"Id": "ep", "IndexNumber": 2, "ParentIndexNumber": 1},
			}})
		}
	}))
	defer embyServer.Close()

	sourceDir := t.TempDir()
	libraryDir := t.TempDir()
	source := filepath.Join(sourceDir, "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	settings := testSettings(libraryDir)
	settings.Emby = config.EmbySettings{
		Enabled:           true,
		CheckBeforeScrape: true,
		ServerURL:         embyServer.URL,
		APIKey:            "key",
	}

	svc := newTestService(server.URL, settings)
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		LinkMode:   organizer.ModeMove,
		Settings:   settings,
	})

	if result.Status != StatusMDBConflict {
		t.Fatalf("Status = %q, want mdb_conflict", result.Status)
	}
	if result.EmbyConflict == nil || result.EmbyConflict.Type != emby.EpisodeExists {
		t.Error("conflict details missing from result")
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("source file was moved despite server conflict")
	}
	entries, _ := os.ReadDir(libraryDir)
	if len(entries) != 0 {
		t.Errorf("library touched despite conflict: %v", entries)
	}
}

func TestScrapeFileFallbackQuerySurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/search/tv":
			if r.URL.Query().Get("query") == "Golden Boy" {
				writeJSON(w, map[string]interface{}{"results": []map[string]interface{}{{
					"id": 1396, "name": "Golden Boy", "original_name": "Golden Boy",
					"first_air_date": "2008-01-20", "adult": true,
				}}})
				return
			}
			writeJSON(w, map[string]interface{}{"results": []map[string]interface{}{}})
		case strings.HasSuffix(r.URL.Path, "/season/1"):
			writeJSON(w, seasonJSON())
		case r.URL.Path == "/tv/1396":
			writeJSON(w, seriesJSON(1396, "Golden Boy", 62))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	libraryDir := t.TempDir()
	source := filepath.Join(t.TempDir(), "OVA Golden Boy", "golden.boy.s01e02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		AutoSelect: true,
		LinkMode:   organizer.ModeCopy,
		Settings:   testSettings(libraryDir),
	})

	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success via fallback query", result.Status, result.Message)
	}
	if result.EffectiveQuery != "Golden Boy" {
		t.Errorf("EffectiveQuery = %q, want %q", result.EffectiveQuery, "Golden Boy")
	}
}

func TestScrapeByID(t *testing.T) {
	server := tmdbServer()
	defer server.Close()

	sourceDir := t.TempDir()
	libraryDir := t.TempDir()
	source := filepath.Join(sourceDir, "obscure release.mkv")
	writeSource(t, source)

	season, episode := 1, 2
	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeByID(context.Background(), ByIDRequest{
		Path:    source,
		TMDBID:  1396,
		Season:  &season,
		Episode: &episode,
	}, Options{
		LinkMode: organizer.ModeCopy,
		Settings: testSettings(libraryDir),
	})

	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success", result.Status, result.Message)
	}
	if result.SeriesID != 1396 {
		t.Errorf("SeriesID = %d, want 1396", result.SeriesID)
	}
}

func TestPreview(t *testing.T) {
	server := tmdbServer(oneResult())
	defer server.Close()

	libraryDir := t.TempDir()
	svc := newTestService(server.URL, testSettings(libraryDir))
	preview, err := svc.Preview(context.Background(), "/downloads/Breaking.Bad.S01E02.mkv", Options{
		Settings: testSettings(libraryDir),
	})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if preview.Plan == nil {
		t.Fatalf("Plan is nil, message %q", preview.Message)
	}
	want := "Breaking Bad - S01E02 - Gray Matter.mkv"
	if preview.Plan.Filename != want {
		t.Errorf("Filename = %q, want %q", preview.Plan.Filename, want)
	}

	entries, _ := os.ReadDir(libraryDir)
	if len(entries) != 0 {
		t.Errorf("preview touched the library: %v", entries)
	}
}

func TestScrapeFileExplicitIDInName(t *testing.T) {
	server := tmdbServer()
	defer server.Close()

	sourceDir := t.TempDir()
	libraryDir := t.TempDir()
	source := filepath.Join(sourceDir, "Breaking Bad [tmdbid-1396]", "Breaking.Bad.S01E02.mkv")
	writeSource(t, source)

	svc := newTestService(server.URL, testSettings(libraryDir))
	result := svc.ScrapeFile(context.Background(), source, Options{
		LinkMode: organizer.ModeCopy,
		Settings: testSettings(libraryDir),
	})

	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q (%s), want success without search", result.Status, result.Message)
	}
	for _, entry := range result.Log {
		if entry.Step == StepSearch && !strings.Contains(entry.Message, "using series id") {
			t.Errorf("search ran despite explicit id: %q", entry.Message)
		}
	}
}
