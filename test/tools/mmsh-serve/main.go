// mmsh-serve answers MMSH requests with an ASF file or a synthetic stream,
// for exercising mmsget without a Windows Media server.
//
// Usage:
//
//	go run ./test/tools/mmsh-serve --packets 500
//	go run ./test/tools/mmsh-serve --file clip.asf --addr :8080
//	mmsget mms://127.0.0.1:8080/clip.asf
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zsiec/mmsget/internal/asf"
	"github.com/zsiec/mmsget/internal/asf/asftest"
	"github.com/zsiec/mmsget/internal/mmsh"
)

// dataObjectHeaderLen is the size of the ASF data object preamble that
// precedes the first data packet.
const dataObjectHeaderLen = 50

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	file := flag.String("file", "", "ASF file to serve (default: synthetic stream)")
	packets := flag.Int("packets", 100, "synthetic stream packet count")
	packetSize := flag.Int("packet-size", 1024, "synthetic stream packet size")
	live := flag.Bool("live", false, "serve the synthetic stream as unseekable")
	packetMS := flag.Int("packet-ms", 100, "stream time covered by one packet, for seeks")
	corruptAfter := flag.Int("corrupt-after", 0, "send an invalid packet type after this many data packets on the first play request")
	flag.Parse()

	var (
		m   *media
		err error
	)
	if *file != "" {
		m, err = loadMedia(*file)
	} else {
		m = syntheticMedia(*packets, *packetSize, *live)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load media: %v\n", err)
		os.Exit(1)
	}

	s := &server{
		media:        m,
		packetTime:   time.Duration(*packetMS) * time.Millisecond,
		corruptAfter: *corruptAfter,
		log:          slog.Default(),
	}
	slog.Info("mmsh-serve listening", "addr", *addr, "packets", len(m.packets), "packet_size", m.packetSize)
	if err := http.ListenAndServe(*addr, s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

// media is an ASF header object and its data packets.
type media struct {
	header     []byte
	packets    [][]byte
	packetSize int
}

func syntheticMedia(n, packetSize int, live bool) *media {
	h := asftest.Header{
		MinPacketSize: uint32(packetSize),
		MaxPacketSize: uint32(packetSize),
		Streams: []asftest.Stream{
			{Number: 1, Kind: asf.KindAudio, BytesPerSecond: 8000},
			{Number: 2, Kind: asf.KindVideo, ExtendedBitrate: 500000},
		},
	}
	h.FileSize = uint64(len(asftest.Build(h)))
	if !live {
		h.FileSize += uint64(n * packetSize)
	}

	m := &media{header: asftest.Build(h), packetSize: packetSize}
	for i := range n {
		p := make([]byte, packetSize)
		binary.LittleEndian.PutUint32(p, uint32(i))
		for j := 4; j < len(p); j++ {
			p[j] = byte(i)
		}
		m.packets = append(m.packets, p)
	}
	return m
}

func loadMedia(path string) (*media, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(b) < 24 {
		return nil, asf.ErrTruncated
	}
	size := binary.LittleEndian.Uint64(b[16:24])
	if size > uint64(len(b)) {
		return nil, asf.ErrTruncated
	}
	hdr := b[:size]
	h, err := asf.Parse(hdr)
	if err != nil {
		return nil, err
	}
	ps, ok := h.PacketSize()
	if !ok {
		return nil, errors.New("file has variable packet size")
	}

	m := &media{header: hdr, packetSize: int(ps)}
	data := b[min(len(b), int(size)+dataObjectHeaderLen):]
	for len(data) >= int(ps) {
		m.packets = append(m.packets, data[:ps])
		data = data[ps:]
	}
	return m, nil
}

type server struct {
	media        *media
	packetTime   time.Duration
	corruptAfter int
	log          *slog.Logger

	plays atomic.Int32
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-mms-framed")
	if r.Header.Get("Supported") != "" {
		s.log.Info("describe", "remote", r.RemoteAddr)
		w.Write(s.describe())
		return
	}

	play := s.plays.Add(1)
	start := s.startPacket(r.Header.Values("Pragma"))
	s.log.Info("play", "remote", r.RemoteAddr, "start", start)

	w.Write(frame(mmsh.TypeHeader, 0, s.media.header))
	for i := start; i < len(s.media.packets); i++ {
		if play == 1 && s.corruptAfter > 0 && i-start == s.corruptAfter {
			w.Write([]byte{0x24, 0x00, 0x00, 0x00})
			return
		}
		if _, err := w.Write(frame(mmsh.TypeData, uint32(i), s.media.packets[i])); err != nil {
			return
		}
	}
	w.Write(reasonPacket(mmsh.TypeEnd, 0))
}

// describe returns the packet-pair experiment followed by the header.
func (s *server) describe() []byte {
	var b []byte
	b = append(b, pairPacket(8, 4, 8)...)
	b = append(b, pairPacket(8, 0, 12)...)
	b = append(b, pairPacket(8, 1024, 1036)...)
	return append(b, frame(mmsh.TypeHeader, 0, s.media.header)...)
}

// startPacket maps a stream-time pragma to a packet index.
func (s *server) startPacket(pragmas []string) int {
	for _, p := range pragmas {
		for _, field := range strings.Split(p, ",") {
			v, ok := strings.CutPrefix(strings.TrimSpace(field), "stream-time=")
			if !ok {
				continue
			}
			ms, err := strconv.ParseInt(v, 10, 64)
			if err != nil || s.packetTime <= 0 {
				return 0
			}
			return min(int(time.Duration(ms)*time.Millisecond/s.packetTime), len(s.media.packets))
		}
	}
	return 0
}

func frame(t mmsh.PacketType, id uint32, payload []byte) []byte {
	b := mmsh.AppendHeader(nil, mmsh.PacketHeader{Sequence: 0x12, Type: t, Length: uint16(mmsh.DataHeaderLen + len(payload))})
	b = mmsh.AppendDataHeader(b, mmsh.DataHeader{ID: id, Size: uint16(mmsh.DataHeaderLen + len(payload))})
	return append(b, payload...)
}

// reasonPacket encodes a STREAM_C or END packet.
func reasonPacket(t mmsh.PacketType, reason uint32) []byte {
	b := mmsh.AppendHeader(nil, mmsh.PacketHeader{Sequence: 0x12, Type: t, Length: mmsh.ReasonLen})
	return binary.LittleEndian.AppendUint32(b, reason)
}

// pairPacket encodes a PAIR packet declaring length declared and carrying
// size bytes after the framing header, the first four being the reason.
func pairPacket(declared uint16, reason uint32, size int) []byte {
	b := mmsh.AppendHeader(nil, mmsh.PacketHeader{Sequence: 0x12, Type: mmsh.TypePair, Length: declared})
	b = binary.LittleEndian.AppendUint32(b, reason)
	return append(b, make([]byte, size-mmsh.ReasonLen)...)
}
