package organizer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
)

func newTestService() *Service {
	return NewService(zerolog.Nop())
}

func testTemplates() config.NamingSettings {
	return config.NamingSettings{
		SeriesFolder: "{title} ({year}) [tmdbid-{tmdb_id}]",
		SeasonFolder: "Season {season}",
		EpisodeFile:  "{title} - S{season:02d}E{episode:02d} - {episode_title}",
	}
}

func testValues() Values {
	return Values{
		Title:        "Frieren",
		Year:         2023,
		Season:       1,
		Episode:      5,
		EpisodeTitle: "Phantoms of the Dead",
		TMDBID:       209867,
	}
}

func writeSourceFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("video data"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestPreview(t *testing.T) {
	svc := newTestService()
	library := t.TempDir()

	preview, err := svc.Preview(Request{
		SourcePath: "/downloads/frieren 05.mkv",
		LibraryDir: library,
		Mode:       ModeMove,
		Templates:  testTemplates(),
		Values:     testValues(),
	})
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if preview.SeriesFolder != "Frieren (2023) [tmdbid-209867]" {
		t.Errorf("SeriesFolder = %q", preview.SeriesFolder)
	}
	if preview.SeasonFolder != "Season 1" {
		t.Errorf("SeasonFolder = %q", preview.SeasonFolder)
	}
	if preview.Filename != "Frieren - S01E05 - Phantoms of the Dead.mkv" {
		t.Errorf("Filename = %q", preview.Filename)
	}

	wantDest := filepath.Join(library, "Frieren (2023) [tmdbid-209867]", "Season 1", "Frieren - S01E05 - Phantoms of the Dead.mkv")
	if preview.DestPath != wantDest {
		t.Errorf("DestPath = %q, want %q", preview.DestPath, wantDest)
	}
	if len(preview.CreateDirs) != 2 {
		t.Errorf("CreateDirs = %v, want series + season dirs", preview.CreateDirs)
	}
}

func TestExecuteMove(t *testing.T) {
	svc := newTestService()
	library := t.TempDir()
	downloads := t.TempDir()

	source := filepath.Join(downloads, "batch", "frieren 05.mkv")
	writeSourceFile(t, source)

	dest, err := svc.Execute(Request{
		SourcePath:        source,
		LibraryDir:        library,
		Mode:              ModeMove,
		DeleteEmptyParent: true,
		Templates:         testTemplates(),
		Values:            testValues(),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Error("source still exists after move")
	}
	// Emptied source folder is pruned when requested
	if _, err := os.Stat(filepath.Join(downloads, "batch")); !os.IsNotExist(err) {
		t.Error("empty source folder was not removed")
	}
}

func TestExecuteMoveKeepsEmptyParent(t *testing.T) {
	svc := newTestService()
	library := t.TempDir()
	downloads := t.TempDir()

	source := filepath.Join(downloads, "batch", "frieren 05.mkv")
	writeSourceFile(t, source)

	if _, err := svc.Execute(Request{
		SourcePath: source,
		LibraryDir: library,
		Mode:       ModeMove,
		Templates:  testTemplates(),
		Values:     testValues(),
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(downloads, "batch")); err != nil {
		t.Error("source folder removed without the delete flag")
	}
}

func TestExecuteCopy(t *testing.T) {
	svc := newTestService()
	library := t.TempDir()

	source := filepath.Join(t.TempDir(), "frieren 05.mkv")
	writeSourceFile(t, source)

	dest, err := svc.Execute(Request{
		SourcePath: source,
		LibraryDir: library,
		Mode:       ModeCopy,
		Templates:  testTemplates(),
		Values:     testValues(),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing: %v", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("source removed by copy mode")
	}
}

func TestExecuteHardlink(t *testing.T) {
	svc := newTestService()
	base := t.TempDir()
	library := filepath.Join(base, "library")
	source := filepath.Join(base, "downloads", "frieren 05.mkv")
	writeSourceFile(t, source)

	dest, err := svc.Execute(Request{
		SourcePath: source,
		LibraryDir: library,
		Mode:       ModeHardlink,
		Templates:  testTemplates(),
		Values:     testValues(),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	si, err1 := os.Stat(source)
	di, err2 := os.Stat(dest)
	if err1 != nil || err2 != nil {
		t.Fatalf("stat: %v / %v", err1, err2)
	}
	if !os.SameFile(si, di) {
		t.Error("destination is not a hardlink of the source")
	}
}

func TestExecuteDestinationExists(t *testing.T) {
	svc := newTestService()
	library := t.TempDir()

	source := filepath.Join(t.TempDir(), "frieren 05.mkv")
	writeSourceFile(t, source)

	existing := filepath.Join(library, "Frieren (2023) [tmdbid-209867]", "Season 1", "Frieren - S01E05 - Phantoms of the Dead.mkv")
	writeSourceFile(t, existing)

	_, err := svc.Execute(Request{
		SourcePath: source,
		LibraryDir: library,
		Mode:       ModeMove,
		Templates:  testTemplates(),
		Values:     testValues(),
	})
	if !errors.Is(err, ErrDestinationExists) {
		t.Errorf("error = %v, want ErrDestinationExists", err)
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("source was touched despite conflict")
	}
}

func TestExecuteSourceMissing(t *testing.T) {
	svc := newTestService()

	_, err := svc.Execute(Request{
		SourcePath: filepath.Join(t.TempDir(), "nope.mkv"),
		LibraryDir: t.TempDir(),
		Mode:       ModeMove,
		Templates:  testTemplates(),
		Values:     testValues(),
	})
	if !errors.Is(err, ErrSourceMissing) {
		t.Errorf("error = %v, want ErrSourceMissing", err)
	}
}

func TestExecuteInPlace(t *testing.T) {
	svc := newTestService()
	root := t.TempDir()

	source := filepath.Join(root, "frieren dump", "Season 1", "frieren 05.mkv")
	writeSourceFile(t, source)

	dest, err := svc.Execute(Request{
		SourcePath: source,
		Mode:       ModeInPlace,
		Templates:  testTemplates(),
		Values:     testValues(),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	want := filepath.Join(root, "Frieren (2023) [tmdbid-209867]", "Season 1", "Frieren - S01E05 - Phantoms of the Dead.mkv")
	if dest != want {
		t.Errorf("dest = %q, want %q", dest, want)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing: %v", err)
	}
}

func TestResolveInPlaceRoot(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/lib/Show/Season 1/ep.mkv", "/lib"},
		{"/lib/Show/S02/ep.mkv", "/lib"},
		{"/lib/Show/ep.mkv", "/lib"},
	}
	for _, tt := range tests {
		if got := resolveInPlaceRoot(tt.path); got != tt.want {
			t.Errorf("resolveInPlaceRoot(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPlaceCompanionOverwrites(t *testing.T) {
	svc := newTestService()
	dir := t.TempDir()

	source := filepath.Join(dir, "sub.ass")
	dest := filepath.Join(dir, "placed", "video.ass")
	writeSourceFile(t, source)
	writeSourceFile(t, dest)

	if err := svc.PlaceCompanion(source, dest, ModeHardlink); err != nil {
		t.Fatalf("PlaceCompanion() error = %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "video data" {
		t.Error("destination was not replaced")
	}
	if _, err := os.Stat(source); err != nil {
		t.Error("source removed for non-move mode")
	}
}
