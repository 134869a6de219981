package mmsh

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/zsiec/mmsget/internal/asf"
	"github.com/zsiec/mmsget/internal/asf/asftest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makePacket(seq uint8, t PacketType, body []byte) []byte {
	b := AppendHeader(nil, PacketHeader{Sequence: seq, Type: t, Length: uint16(len(body))})
	return append(b, body...)
}

func makeDataPacket(t PacketType, id uint32, payload []byte) []byte {
	body := AppendDataHeader(nil, DataHeader{ID: id, Size: uint16(DataHeaderLen + len(payload))})
	body = append(body, payload...)
	return makePacket(0, t, body)
}

func makeReasonPacket(t PacketType, reason uint32) []byte {
	return makePacket(0, t, binary.LittleEndian.AppendUint32(nil, reason))
}

// makePairPacket encodes a PAIR packet with the given declared length whose
// bytes after the framing header total consumed. The reason occupies the
// first four of them.
func makePairPacket(declared uint16, reason uint32, consumed int) []byte {
	b := AppendHeader(nil, PacketHeader{Type: TypePair, Length: declared})
	b = binary.LittleEndian.AppendUint32(b, reason)
	for i := ReasonLen; i < consumed; i++ {
		b = append(b, byte(i))
	}
	return b
}

// seekableHeader returns an ASF header object whose file size covers
// packets data packets of packetSize bytes.
func seekableHeader(packetSize uint32, packets int, streams ...asftest.Stream) []byte {
	h := asftest.Header{MinPacketSize: packetSize, MaxPacketSize: packetSize, Streams: streams}
	size := len(asftest.Build(h))
	h.FileSize = uint64(size) + uint64(packets)*uint64(packetSize)
	return asftest.Build(h)
}

// liveHeader returns an ASF header object whose file size equals its own
// length, which marks a stream without seek support.
func liveHeader(packetSize uint32, streams ...asftest.Stream) []byte {
	h := asftest.Header{MinPacketSize: packetSize, MaxPacketSize: packetSize, Streams: streams}
	h.FileSize = uint64(len(asftest.Build(h)))
	return asftest.Build(h)
}

var defaultStreams = []asftest.Stream{
	{Number: 1, Kind: asf.KindAudio, BytesPerSecond: 8000},
	{Number: 2, Kind: asf.KindVideo, ExtendedBitrate: 300000},
}

type fakeTransport struct {
	sends   []*Request
	aborts  int
	sendErr error
}

func (t *fakeTransport) Send(req *Request) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sends = append(t.sends, req)
	return nil
}

func (t *fakeTransport) Abort() { t.aborts++ }

type sinkWrite struct {
	off  int64
	data []byte
}

type fakeSink struct {
	writes   []sinkWrite
	file     []byte
	size     int64
	sized    int
	finished int
	failed   []error
	writeErr error
}

func (s *fakeSink) WriteAt(p []byte, off int64) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, sinkWrite{off: off, data: append([]byte(nil), p...)})
	if end := off + int64(len(p)); end > int64(len(s.file)) {
		s.file = append(s.file, make([]byte, end-int64(len(s.file)))...)
	}
	copy(s.file[off:], p)
	return len(p), nil
}

func (s *fakeSink) NotifySize(size int64) {
	s.size = size
	s.sized++
}

func (s *fakeSink) NotifyFinished() { s.finished++ }

func (s *fakeSink) NotifyFailed(err error) { s.failed = append(s.failed, err) }

type failingParser struct{}

func (failingParser) Parse([]byte) (*asf.Header, error) {
	return nil, errors.New("bad header")
}

func newTestDownloader(t *testing.T, cfg Config) (*Downloader, *fakeTransport, *fakeSink) {
	t.Helper()
	if cfg.URL == "" {
		cfg.URL = "http://example.com/live"
	}
	if cfg.ClientGUID == "" {
		cfg.ClientGUID = "00000000-0000-0000-0000-000000000001"
	}
	cfg.Log = quietLogger()
	tr := &fakeTransport{}
	sk := &fakeSink{}
	d := New(cfg, tr, asf.Parser{}, sk)
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return d, tr, sk
}

// describe drives d through the describe phase with header.
func describe(t *testing.T, d *Downloader, header []byte) {
	t.Helper()
	if err := d.Read(makeDataPacket(TypeHeader, 0, header)); err != nil {
		t.Fatalf("describe Read: %v", err)
	}
	if !d.Session().Described {
		t.Fatal("session not described after first header")
	}
}

// feedChunked delivers b in chunks of size n.
func feedChunked(t *testing.T, d *Downloader, b []byte, n int) {
	t.Helper()
	for len(b) > 0 {
		k := min(n, len(b))
		if err := d.Read(b[:k]); err != nil {
			t.Fatalf("Read: %v", err)
		}
		b = b[k:]
	}
}
