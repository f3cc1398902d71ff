package emby

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/config"
)

type stubSettings struct {
	cfg config.EmbySettings
}

func (s *stubSettings) Emby() config.EmbySettings { return s.cfg }

func newTestClient(serverURL string, cfg config.EmbySettings) *Client {
	c := NewClient(&stubSettings{cfg: cfg}, zerolog.Nop())
	c.baseURL = serverURL
	return c
}

func enabledSettings() config.EmbySettings {
	return config.EmbySettings{
		Enabled:           true,
		CheckBeforeScrape: true,
		ServerURL:         "http://emby.local",
		APIKey:            "key",
	}
}

func embyHandler(t *testing.T, hasEpisode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Emby-Token"); got != "key" {
			t.Errorf("X-Emby-Token = %q, want key", got)
		}
		switch {
		case r.URL.Path == "/emby/Items":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"Items": []map[string]interface{}{
					{"Id": "abc", "Name": "Frieren", "ProviderIds": map[string]string{"Tmdb": "209867"}},
				},
			})
		case strings.HasPrefix(r.URL.Path, "/emby/Shows/abc/Episodes"):
			items := []map[string]interface{}{}
			if hasEpisode {
				items = append(items, map[string]interface{}{"Id": "ep", "IndexNumber": 5, "ParentIndexNumber": 1})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"Items": items})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestCheckEpisodeExists(t *testing.T) {
	server := httptest.NewServer(embyHandler(t, true))
	defer server.Close()

	client := newTestClient(server.URL, enabledSettings())
	result := client.CheckEpisode(context.Background(), "Frieren", 209867, 1, 5)

	if result.Type != EpisodeExists {
		t.Errorf("Type = %q, want EpisodeExists", result.Type)
	}
	if result.SeriesID != "abc" {
		t.Errorf("SeriesID = %q, want abc", result.SeriesID)
	}
}

func TestCheckSeriesExists(t *testing.T) {
	server := httptest.NewServer(embyHandler(t, false))
	defer server.Close()

	client := newTestClient(server.URL, enabledSettings())
	result := client.CheckEpisode(context.Background(), "Frieren", 209867, 1, 9)

	if result.Type != SeriesExists {
		t.Errorf("Type = %q, want SeriesExists", result.Type)
	}
}

func TestCheckDisabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server hit while check disabled")
	}))
	defer server.Close()

	cfg := enabledSettings()
	cfg.CheckBeforeScrape = false

	client := newTestClient(server.URL, cfg)
	result := client.CheckEpisode(context.Background(), "Frieren", 209867, 1, 5)

	if result.Type != NoConflict {
		t.Errorf("Type = %q, want NoConflict", result.Type)
	}
}

func TestCheckServerErrorDegrades(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, enabledSettings())
	result := client.CheckEpisode(context.Background(), "Frieren", 209867, 1, 5)

	if result.Type != NoConflict {
		t.Errorf("Type = %q, want NoConflict on server error", result.Type)
	}
}

func TestCheckUnknownSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"Items": []interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, enabledSettings())
	result := client.CheckEpisode(context.Background(), "Unknown Show", 0, 1, 1)

	if result.Type != NoConflict {
		t.Errorf("Type = %q, want NoConflict", result.Type)
	}
}
