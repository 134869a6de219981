package mmsh

import (
	"fmt"

	"github.com/zsiec/mmsget/internal/asf"
)

// handleHeader processes a HEADER packet. The first header of a session
// drives the describe phase: streams are discovered and selected, the
// buffer is discarded and a play request replaces the describe request.
// Later headers are authoritative and set the offsets for DATA packets.
func (d *Downloader) handleHeader(p Packet) (int, step, error) {
	if len(p.Body) < DataHeaderLen {
		return 0, stepNext, &CorruptionError{Type: p.Header.Type, Sequence: p.Header.Sequence, Reason: "header packet shorter than sub-header"}
	}
	payload := p.Body[DataHeaderLen:]

	h, err := d.parser.Parse(payload)
	if err != nil {
		d.log.Warn("asf header parse failed, using defaults", "error", err, "size", len(payload))
		d.session.PacketSize = DefaultPacketSize
		d.session.FileSize = 0
		if !d.session.Described {
			return len(p.Body), stepNext, nil
		}
		// Without a file size the stream is treated as unseekable.
		if seekPending := d.beginStreaming(int64(len(payload)), false); seekPending {
			return len(p.Body), stepNext, nil
		}
		return len(p.Body), stepNext, d.writeHeader(payload)
	}

	if !d.session.Described {
		return 0, stepStop, d.describe(h)
	}

	size, ok := h.PacketSize()
	if !ok {
		size = DefaultPacketSize
	}
	d.session.PacketSize = size
	d.session.FileSize = h.FileSize
	headerSize := int64(len(payload))
	seekable := h.FileSize != uint64(headerSize)
	seekPending := d.beginStreaming(headerSize, seekable)

	d.log.Info("stream header",
		"header_size", headerSize,
		"file_size", h.FileSize,
		"packet_size", size,
		"seekable", seekable,
	)

	if seekable {
		d.sink.NotifySize(int64(h.FileSize))
		return len(p.Body), stepNext, d.writeHeader(payload)
	}
	if seekPending {
		return len(p.Body), stepNext, nil
	}
	return len(p.Body), stepNext, d.writeHeader(payload)
}

// describe records the streams of the describe response and replaces the
// describe request with a play request.
func (d *Downloader) describe(h *asf.Header) error {
	d.selection.discover(h)
	if d.cfg.BandwidthLimitedSelection {
		if bw := d.MeasuredBandwidth(); bw > 0 {
			d.selection.limit(bw)
			d.log.Info("selection limited by measured bandwidth", "bandwidth", bw)
		}
	}
	d.session.Described = true

	d.log.Info("streams described",
		"candidates", len(d.selection.Candidates),
		"audio", d.selection.BestAudio,
		"audio_rate", d.selection.BestAudioRate,
		"video", d.selection.BestVideo,
		"video_rate", d.selection.BestVideoRate,
		"marker", d.selection.Marker,
	)

	d.framer.Reset()
	return d.restart()
}

// beginStreaming records the authoritative header and reports whether a
// seek was outstanding. The seek is considered satisfied by this header.
func (d *Downloader) beginStreaming(headerSize int64, seekable bool) bool {
	d.session.Streaming = true
	d.session.HeaderSize = headerSize
	d.session.Seekable = seekable
	d.contiguous = 0

	pending := d.seek.pending
	d.seek.pending = false
	return pending
}

func (d *Downloader) writeHeader(payload []byte) error {
	return d.write(payload, 0)
}

// handleMetadata consumes a METADATA packet. Its contents are informational
// and never affect offsets.
func (d *Downloader) handleMetadata(p Packet) (int, step, error) {
	if len(p.Body) > DataHeaderLen {
		d.metadata = parseMetadata(p.Body[DataHeaderLen:])
		d.log.Debug("metadata",
			"playlist_gen_id", d.metadata.PlaylistGenID,
			"broadcast_id", d.metadata.BroadcastID,
			"features", uint32(d.metadata.Features),
		)
	}
	return len(p.Body), stepNext, nil
}

// handlePair consumes one of the three packet-pair experiment packets. Each
// carries a 4-byte reason field beyond its declared length, and the reason
// corrects the length of the first (shorter than declared) and the third
// (longer than declared) packets.
func (d *Downloader) handlePair(p Packet) (int, step, error) {
	if len(p.buffered) < ReasonLen {
		return 0, stepNeedMore, nil
	}
	reason := int64(parseReason(p.buffered))
	declared := int64(p.Header.Length)

	var n int64
	switch min(d.pair.seen, 2) {
	case 0:
		n = declared + ReasonLen - reason
		if n < 0 {
			return 0, stepNext, &CorruptionError{
				Type:     p.Header.Type,
				Sequence: p.Header.Sequence,
				Reason:   fmt.Sprintf("pair reason %d exceeds packet length %d", reason, declared+ReasonLen),
			}
		}
	case 1:
		n = declared + ReasonLen
	default:
		n = declared + ReasonLen + reason
	}
	if n > int64(len(p.buffered)) {
		return 0, stepNeedMore, nil
	}

	if d.pair.seen < len(d.pair.times) {
		d.pair.times[d.pair.seen] = d.cfg.Now()
		d.pair.sizes[d.pair.seen] = HeaderLen + int(n)
	}
	d.pair.seen++
	d.log.Debug("pair packet", "index", d.pair.seen, "declared", declared, "reason", reason, "consumed", n)

	return int(n), stepNext, nil
}

// handleData forwards the ASF packet carried by a DATA packet. Every write
// is exactly one ASF packet long, zero-padded when the payload is short.
func (d *Downloader) handleData(p Packet) (int, step, error) {
	if len(p.Body) < DataHeaderLen {
		return 0, stepNext, &CorruptionError{Type: p.Header.Type, Sequence: p.Header.Sequence, Reason: "data packet shorter than sub-header"}
	}
	if !d.session.Streaming {
		d.log.Debug("data packet before stream header, dropped")
		return len(p.Body), stepNext, nil
	}

	dh := parseDataHeader(p.Body)
	payload := p.Body[DataHeaderLen:]
	stride := int64(d.session.PacketSize)
	if stride == 0 {
		stride = DefaultPacketSize
	}

	var off int64
	if d.session.Seekable {
		off = d.session.HeaderSize + int64(dh.ID)*stride
	} else {
		// Every write is padded to the stride, so the next packet starts
		// one stride later whatever its declared length.
		off = d.session.HeaderSize + d.contiguous
		d.contiguous += stride
	}

	if int64(len(payload)) >= stride {
		payload = payload[:stride]
	} else {
		if int64(cap(d.scratch)) < stride {
			d.scratch = make([]byte, stride)
		}
		pad := d.scratch[:stride]
		n := copy(pad, payload)
		clear(pad[n:])
		payload = pad
	}

	return len(p.Body), stepNext, d.write(payload, off)
}

// handleStreamChange consumes a STREAM_C packet, noting its reason.
func (d *Downloader) handleStreamChange(p Packet) (int, step, error) {
	if len(p.Body) >= ReasonLen {
		d.log.Info("stream change", "reason", parseReason(p.Body))
	}
	return len(p.Body), stepNext, nil
}

// handleEnd consumes an END packet. Reason 0 means the server will send no
// more data; 1 means more playlist entries follow.
func (d *Downloader) handleEnd(p Packet) (int, step, error) {
	if len(p.Body) >= ReasonLen {
		d.session.EndReason = parseReason(p.Body)
	}
	d.log.Info("end of stream", "reason", d.session.EndReason)
	return len(p.Body), stepNext, nil
}

func (d *Downloader) write(b []byte, off int64) error {
	if _, err := d.sink.WriteAt(b, off); err != nil {
		return &SinkError{Offset: off, Err: err}
	}
	d.stats.bytesWritten.Add(int64(len(b)))
	return nil
}
