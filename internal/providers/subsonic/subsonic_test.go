package subsonic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jpp0ca/tunesync-core/internal/domain"
)

func newTestDriver(t *testing.T, handler http.HandlerFunc) *Driver {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.Client(), Config{BaseURL: server.URL, Username: "alice", Password: "hunter2"})
}

func TestGetTrackMapsFields(t *testing.T) {
	driver := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "getSong") {
			t.Fatalf("unexpected method path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"subsonic-response":{"status":"ok","song":{"id":"42","title":"Everlong","album":"The Colour and the Shape","artist":"Foo Fighters","track":3,"year":1997,"duration":250,"isrc":"USRC19700001","coverArt":"al-1"}}}`))
	})

	track, err := driver.GetTrack(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if track.Title != "Everlong" || track.PrimaryArtist != "Foo Fighters" || track.ISRC != "USRC19700001" {
		t.Fatalf("unexpected track: %+v", track)
	}
	if track.ServiceData["coverArt"] != "al-1" {
		t.Fatalf("expected coverArt to survive into service_data, got %+v", track.ServiceData)
	}
}

func TestGetTrackNotFound(t *testing.T) {
	driver := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"subsonic-response":{"status":"failed","error":{"code":70,"message":"Data not found"}}}`))
	})

	_, err := driver.GetTrack(context.Background(), "missing")
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindTrackNotFound {
		t.Fatalf("expected KindTrackNotFound, got %v (ok=%v)", err, ok)
	}
}

func TestGetTrackAssetsSignsURL(t *testing.T) {
	driver := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {})
	track := domain.Track{ServiceData: map[string]any{"coverArt": "al-1"}}

	assets, err := driver.GetTrackAssets(context.Background(), track)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(assets.CoverImageURL, "getCoverArt.view") ||
		!strings.Contains(assets.CoverImageURL, "id=al-1") ||
		!strings.Contains(assets.CoverImageURL, "u=alice") ||
		!strings.Contains(assets.CoverImageURL, "v=1.8.0") ||
		!strings.Contains(assets.CoverImageURL, "c=tunesynctool") {
		t.Fatalf("unexpected signed URL: %s", assets.CoverImageURL)
	}
}

func TestGetTrackAssetsNoCoverArtIsEmpty(t *testing.T) {
	driver := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {})
	assets, err := driver.GetTrackAssets(context.Background(), domain.Track{})
	if err != nil || assets.CoverImageURL != "" {
		t.Fatalf("expected empty assets, got %+v err=%v", assets, err)
	}
}

func TestGetTrackByISRCUnsupported(t *testing.T) {
	driver := newTestDriver(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := driver.GetTrackByISRC(context.Background(), "USRC19700001")
	if kind, ok := domain.KindOf(err); !ok || kind != domain.KindUnsupportedFeature {
		t.Fatalf("expected KindUnsupportedFeature, got %v", err)
	}
}
