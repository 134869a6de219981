package mmsh

import (
	"github.com/zsiec/mmsget/internal/asf"
)

// Share of the measured packet-pair bandwidth a stream may use when
// bandwidth-limited selection is enabled.
const (
	videoBandwidthPercent = 75
	audioBandwidthPercent = 25
)

// Candidate is a stream discovered in the describe response.
type Candidate struct {
	Number  int
	Kind    asf.StreamKind
	Bitrate int64
}

// Selection tracks the streams requested from the server. It survives
// re-describes and seeks for the lifetime of a downloader.
type Selection struct {
	BestAudio     int
	BestAudioRate int64
	BestVideo     int
	BestVideoRate int64

	// Marker is the command stream number, or 0 when the file has none.
	Marker int

	Candidates []Candidate
}

// discover enumerates stream numbers 1..127 of h and records every audio,
// video and command stream.
func (s *Selection) discover(h *asf.Header) {
	for n := 1; n <= asf.MaxStreamNumber; n++ {
		st := h.Stream(n)
		if st == nil {
			continue
		}
		switch st.Kind {
		case asf.KindAudio:
			s.add(Candidate{Number: n, Kind: asf.KindAudio, Bitrate: audioBitrate(st)})
		case asf.KindVideo:
			s.add(Candidate{Number: n, Kind: asf.KindVideo, Bitrate: videoBitrate(st)})
		case asf.KindCommand:
			s.Marker = n
		}
	}
}

// add records c and keeps it as the best of its kind when its bitrate is
// strictly greater than the current best. The first stream of a kind is
// always taken so that a zero-rate stream is still selectable.
func (s *Selection) add(c Candidate) {
	s.Candidates = append(s.Candidates, c)
	switch c.Kind {
	case asf.KindAudio:
		if s.BestAudio == 0 || c.Bitrate > s.BestAudioRate {
			s.BestAudio, s.BestAudioRate = c.Number, c.Bitrate
		}
	case asf.KindVideo:
		if s.BestVideo == 0 || c.Bitrate > s.BestVideoRate {
			s.BestVideo, s.BestVideoRate = c.Number, c.Bitrate
		}
	}
}

// limit re-selects the best streams against their share of the available
// bandwidth in bits per second. The first candidate of a kind is always
// taken and is only replaced by a higher-rate stream under the cap, so a
// first candidate over the cap stays selected when later ones are slower.
func (s *Selection) limit(bandwidth int64) {
	if bandwidth <= 0 {
		return
	}
	s.BestAudio, s.BestAudioRate = s.bestWithin(asf.KindAudio, bandwidth*audioBandwidthPercent/100)
	s.BestVideo, s.BestVideoRate = s.bestWithin(asf.KindVideo, bandwidth*videoBandwidthPercent/100)
}

func (s *Selection) bestWithin(kind asf.StreamKind, limit int64) (int, int64) {
	var (
		best int
		rate int64
	)
	for _, c := range s.Candidates {
		if c.Kind != kind {
			continue
		}
		if best == 0 {
			best, rate = c.Number, c.Bitrate
			continue
		}
		if c.Bitrate > rate && c.Bitrate < limit {
			best, rate = c.Number, c.Bitrate
		}
	}
	return best, rate
}

func audioBitrate(st *asf.Stream) int64 {
	if st.Audio == nil {
		return 0
	}
	return int64(st.Audio.BytesPerSecond) * 8
}

// videoBitrate prefers the extended stream properties bitrate. Without it the
// bitmap area (width × height) is used as a proxy. The proxy is not a
// bitrate and mixes units with real rates; its value must stay unchanged.
func videoBitrate(st *asf.Stream) int64 {
	if st.Extended != nil {
		return int64(st.Extended.DataBitrate)
	}
	if st.Video != nil && st.Video.Bitmap != nil {
		return int64(st.Video.Bitmap.Width) * int64(st.Video.Bitmap.Height)
	}
	return 0
}
