package filescan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"normal path", "/media/downloads/show", false},
		{"empty", "", true},
		{"traversal", "/media/../etc/passwd", true},
		{"tilde", "~/downloads", true},
		{"nul byte", "/media/a\x00b", true},
		{"etc", "/etc", true},
		{"etc child", "/etc/passwd", true},
		{"proc", "/proc/self", true},
		{"var", "/var/lib/something", true},
		{"prefix lookalike", "/etcetera/show", false},
		{"root home", "/root/downloads", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr && !errors.Is(err, ErrBlockedPath) {
				t.Errorf("ValidatePath(%q) = %v, want ErrBlockedPath", tt.path, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidatePath(%q) = %v, want nil", tt.path, err)
			}
		})
	}
}

func TestIsVideoFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"show.mkv", true},
		{"show.MP4", true},
		{"show.m2ts", true},
		{"disc.iso", true},
		{"show.srt", false},
		{"show.nfo", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := IsVideoFile(tt.path); got != tt.want {
			t.Errorf("IsVideoFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanPathDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mkv"), 10)
	writeFile(t, filepath.Join(dir, "sub", "b.mp4"), 10)
	writeFile(t, filepath.Join(dir, "notes.txt"), 10)
	writeFile(t, filepath.Join(dir, ".hidden", "c.mkv"), 10)
	writeFile(t, filepath.Join(dir, ".skip.mkv"), 10)

	s := NewService(zerolog.Nop())
	got, err := s.ScanPath(dir, 0)
	if err != nil {
		t.Fatalf("ScanPath() error = %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.mkv"),
		filepath.Join(dir, "sub", "b.mp4"),
	}
	if len(got) != len(want) {
		t.Fatalf("ScanPath() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ScanPath()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScanPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "show.mkv")
	writeFile(t, video, 10)

	s := NewService(zerolog.Nop())
	got, err := s.ScanPath(video, 0)
	if err != nil {
		t.Fatalf("ScanPath() error = %v", err)
	}
	if len(got) != 1 || got[0] != video {
		t.Errorf("ScanPath() = %v, want [%s]", got, video)
	}

	text := filepath.Join(dir, "notes.txt")
	writeFile(t, text, 10)
	got, err = s.ScanPath(text, 0)
	if err != nil {
		t.Fatalf("ScanPath() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ScanPath() on non-video = %v, want empty", got)
	}
}

func TestScanPathSizeFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "small.mkv"), 100)
	writeFile(t, filepath.Join(dir, "big.mkv"), 2*1024*1024)

	s := NewService(zerolog.Nop())
	got, err := s.ScanPath(dir, 1)
	if err != nil {
		t.Fatalf("ScanPath() error = %v", err)
	}
	if len(got) != 1 || filepath.Base(got[0]) != "big.mkv" {
		t.Errorf("ScanPath() = %v, want only big.mkv", got)
	}
}

func TestScanPathMissing(t *testing.T) {
	s := NewService(zerolog.Nop())
	_, err := s.ScanPath(filepath.Join(t.TempDir(), "nope"), 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ScanPath() error = %v, want ErrNotFound", err)
	}
}
