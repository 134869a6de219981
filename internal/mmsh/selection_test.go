package mmsh

import (
	"testing"

	"github.com/zsiec/mmsget/internal/asf"
	"github.com/zsiec/mmsget/internal/asf/asftest"
)

func parseHeaderObject(t *testing.T, streams ...asftest.Stream) *asf.Header {
	t.Helper()
	h, err := asf.Parse(asftest.Build(asftest.Header{MinPacketSize: 1000, MaxPacketSize: 1000, Streams: streams}))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return h
}

func TestSelection_HighestBitratePerKind(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t,
		asftest.Stream{Number: 2, Kind: asf.KindAudio, BytesPerSecond: 8000},
		asftest.Stream{Number: 3, Kind: asf.KindAudio, BytesPerSecond: 16000},
		asftest.Stream{Number: 5, Kind: asf.KindVideo, ExtendedBitrate: 500000},
	)

	var s Selection
	s.discover(h)

	if s.BestAudio != 3 || s.BestAudioRate != 128000 {
		t.Errorf("audio = %d@%d, want 3@128000", s.BestAudio, s.BestAudioRate)
	}
	if s.BestVideo != 5 || s.BestVideoRate != 500000 {
		t.Errorf("video = %d@%d, want 5@500000", s.BestVideo, s.BestVideoRate)
	}
	if s.Marker != 0 {
		t.Errorf("marker = %d, want 0", s.Marker)
	}
	if len(s.Candidates) != 3 {
		t.Errorf("got %d candidates, want 3", len(s.Candidates))
	}
}

func TestSelection_TiesKeepFirst(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t,
		asftest.Stream{Number: 4, Kind: asf.KindAudio, BytesPerSecond: 4000},
		asftest.Stream{Number: 7, Kind: asf.KindAudio, BytesPerSecond: 4000},
	)
	var s Selection
	s.discover(h)
	if s.BestAudio != 4 {
		t.Errorf("BestAudio = %d, want 4", s.BestAudio)
	}
	if s.BestVideo != 0 {
		t.Errorf("BestVideo = %d, want 0", s.BestVideo)
	}
}

func TestSelection_ZeroRateStreamSelectable(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t, asftest.Stream{Number: 1, Kind: asf.KindVideo})
	var s Selection
	s.discover(h)
	if s.BestVideo != 1 || s.BestVideoRate != 0 {
		t.Errorf("video = %d@%d, want 1@0", s.BestVideo, s.BestVideoRate)
	}
}

func TestSelection_VideoBitmapProxy(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t,
		asftest.Stream{Number: 1, Kind: asf.KindVideo, Width: 320, Height: 240, WithBitmap: true},
		asftest.Stream{Number: 2, Kind: asf.KindVideo, Width: 640, Height: 480, WithBitmap: true},
	)
	var s Selection
	s.discover(h)
	if s.BestVideo != 2 || s.BestVideoRate != 640*480 {
		t.Errorf("video = %d@%d, want 2@%d", s.BestVideo, s.BestVideoRate, 640*480)
	}
}

func TestSelection_Marker(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t,
		asftest.Stream{Number: 1, Kind: asf.KindAudio, BytesPerSecond: 4000},
		asftest.Stream{Number: 2, Kind: asf.KindVideo, ExtendedBitrate: 100000},
		asftest.Stream{Number: 3, Kind: asf.KindCommand},
	)
	var s Selection
	s.discover(h)
	if s.Marker != 3 {
		t.Errorf("Marker = %d, want 3", s.Marker)
	}
	if len(s.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(s.Candidates))
	}
}

func TestSelection_Limit(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t,
		asftest.Stream{Number: 1, Kind: asf.KindAudio, BytesPerSecond: 4000},
		asftest.Stream{Number: 2, Kind: asf.KindAudio, BytesPerSecond: 20000},
		asftest.Stream{Number: 3, Kind: asf.KindVideo, ExtendedBitrate: 200000},
		asftest.Stream{Number: 4, Kind: asf.KindVideo, ExtendedBitrate: 2000000},
	)
	var s Selection
	s.discover(h)
	if s.BestAudio != 2 || s.BestVideo != 4 {
		t.Fatalf("unlimited = %d/%d, want 2/4", s.BestAudio, s.BestVideo)
	}

	// 1 Mbit/s: audio cap 250k, video cap 750k.
	s.limit(1_000_000)
	if s.BestAudio != 2 {
		t.Errorf("limited audio = %d, want 2", s.BestAudio)
	}
	if s.BestVideo != 3 {
		t.Errorf("limited video = %d, want 3", s.BestVideo)
	}

	// Nothing fits: the first candidate of each kind remains.
	s.limit(1000)
	if s.BestAudio != 1 || s.BestVideo != 3 {
		t.Errorf("starved = %d/%d, want 1/3", s.BestAudio, s.BestVideo)
	}
}

func TestSelection_LimitKeepsFirstOverCap(t *testing.T) {
	t.Parallel()
	h := parseHeaderObject(t,
		asftest.Stream{Number: 1, Kind: asf.KindAudio, BytesPerSecond: 37500},
		asftest.Stream{Number: 2, Kind: asf.KindAudio, BytesPerSecond: 12500},
	)
	var s Selection
	s.discover(h)

	// The audio cap is 250k. Stream 2 fits under it but is slower than the
	// first candidate, so the first candidate stays selected.
	s.limit(1_000_000)
	if s.BestAudio != 1 || s.BestAudioRate != 300000 {
		t.Errorf("limited audio = %d at %d, want 1 at 300000", s.BestAudio, s.BestAudioRate)
	}
}
