package youtube

import "testing"

func TestParseVideoTitleArtistDash(t *testing.T) {
	title, artist := parseVideoTitle("Foo Fighters - Everlong (Official Music Video)")
	if title != "Everlong" || artist != "Foo Fighters" {
		t.Fatalf("got title=%q artist=%q", title, artist)
	}
}

func TestParseVideoTitleNoSeparator(t *testing.T) {
	title, artist := parseVideoTitle("Just A Title")
	if title != "Just A Title" || artist != "" {
		t.Fatalf("got title=%q artist=%q", title, artist)
	}
}

func TestParseVideoTitleStripsMultipleSuffixes(t *testing.T) {
	title, artist := parseVideoTitle("Artist - Song [Official Video] (HD)")
	if title != "Song" || artist != "Artist" {
		t.Fatalf("got title=%q artist=%q", title, artist)
	}
}
