package mmsh

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/mmsget/internal/asf"
)

// DefaultMaxResends bounds how many times a downloader restarts its request
// after protocol corruption before giving up.
const DefaultMaxResends = 3

// Transport issues HTTP requests and delivers response bytes back through
// the downloader's Read. Finished must be reported exactly once for every
// request that was not aborted.
type Transport interface {
	Send(req *Request) error
	Abort()
}

// HeaderParser decodes the ASF header carried in HEADER packets.
type HeaderParser interface {
	Parse(b []byte) (*asf.Header, error)
}

// Sink receives media bytes at absolute offsets of the reassembled ASF file.
// WriteAt must not retain p.
type Sink interface {
	io.WriterAt
	NotifySize(size int64)
	NotifyFinished()
	NotifyFailed(err error)
}

// Config controls a Downloader.
type Config struct {
	// URL is the http(s) URL of the stream; see HTTPURL.
	URL        string
	UserAgent  string
	ClientGUID string

	// MaxResends bounds restarts after protocol corruption over the
	// lifetime of the downloader. Zero selects DefaultMaxResends; a
	// negative value disables restarts.
	MaxResends int

	// BandwidthLimitedSelection caps selected streams at a share of the
	// bandwidth measured from the packet-pair experiment.
	BandwidthLimitedSelection bool

	Log *slog.Logger
	Now func() time.Time
}

// Session is the negotiation state of a downloader.
type Session struct {
	Described  bool
	Streaming  bool
	Seekable   bool
	HeaderSize int64
	FileSize   uint64
	PacketSize uint32
	PairCount  int
	EndReason  uint32
	Finished   bool
}

type pairState struct {
	seen  int
	times [3]time.Time
	sizes [3]int
}

type seekState struct {
	pending  bool
	position time.Duration
}

type packetHandler func(p Packet) (int, step, error)

// Downloader reassembles an MMSH response into an ASF file. It negotiates in
// two phases: a describe request to learn the available streams, then a
// play request for the selected ones.
//
// All methods must be called from one goroutine at a time; the transport
// serializes Read with the other entry points. Stats may be called
// concurrently.
type Downloader struct {
	cfg       Config
	log       *slog.Logger
	transport Transport
	parser    HeaderParser
	sink      Sink

	framer    Framer
	handlers  map[PacketType]packetHandler
	session   Session
	selection Selection
	metadata  Metadata
	pair      pairState
	seek      seekState

	inflight   bool
	done       bool
	resends    int
	contiguous int64
	scratch    []byte
	stats      counters
}

// New creates a Downloader that issues requests through t, decodes headers
// with p and writes the reassembled file to s.
func New(cfg Config, t Transport, p HeaderParser, s Sink) *Downloader {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ClientGUID == "" {
		cfg.ClientGUID = uuid.NewString()
	}
	if cfg.MaxResends == 0 {
		cfg.MaxResends = DefaultMaxResends
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Downloader{
		cfg:       cfg,
		log:       cfg.Log.With("component", "mmsh", "url", cfg.URL),
		transport: t,
		parser:    p,
		sink:      s,
	}
	d.handlers = map[PacketType]packetHandler{
		TypeHeader:       d.handleHeader,
		TypeMetadata:     d.handleMetadata,
		TypePair:         d.handlePair,
		TypeData:         d.handleData,
		TypeStreamChange: d.handleStreamChange,
		TypeEnd:          d.handleEnd,
	}
	return d
}

// Start issues the describe request.
func (d *Downloader) Start() error {
	return d.Send()
}

// Send issues a request for the current phase: a describe request until the
// streams are known, a play request afterwards.
func (d *Downloader) Send() error {
	if d.done {
		return ErrClosed
	}

	var req *Request
	if !d.session.Described {
		req = describeRequest(d.cfg.URL, d.cfg.UserAgent, d.cfg.ClientGUID)
	} else {
		req = playRequest(d.cfg.URL, d.cfg.UserAgent, d.cfg.ClientGUID, &d.selection,
			d.seek.pending, d.seek.position.Milliseconds())
	}

	d.log.Debug("sending request", "described", d.session.Described, "seek", d.seek.pending)
	if err := d.transport.Send(req); err != nil {
		terr := &TransportError{Err: err}
		d.fail(terr)
		return terr
	}
	d.inflight = true
	d.stats.requests.Add(1)
	return nil
}

// Abort cancels the in-flight request, if any. It is safe to call with no
// request outstanding and never notifies the sink.
func (d *Downloader) Abort() {
	if !d.inflight {
		return
	}
	d.inflight = false
	d.transport.Abort()
}

// Read consumes one chunk of the response body. It is the transport's
// delivery callback and must not be called re-entrantly.
//
// Protocol corruption aborts the request and resends it, up to MaxResends
// times; the corruption error is returned either way.
func (d *Downloader) Read(chunk []byte) error {
	if d.done {
		return ErrClosed
	}
	d.stats.bytesReceived.Add(int64(len(chunk)))
	d.stats.readCount.Add(1)

	err := d.framer.Feed(chunk, d.dispatch)
	if err == nil {
		return nil
	}
	if d.done {
		return err
	}

	if !errors.Is(err, ErrProtocolCorruption) {
		d.fail(err)
		return err
	}

	d.resends++
	if d.cfg.MaxResends < 0 || d.resends > d.cfg.MaxResends {
		d.log.Error("protocol corruption, giving up", "error", err, "resends", d.resends-1)
		d.fail(err)
		return err
	}

	d.log.Warn("protocol corruption, restarting request", "error", err, "attempt", d.resends)
	d.stats.resends.Add(1)
	d.framer.Reset()
	if serr := d.restart(); serr != nil {
		return serr
	}
	return err
}

// SeekTo restarts streaming at position. Before the streams are known the
// position is carried by the first play request.
func (d *Downloader) SeekTo(position time.Duration) error {
	if d.done {
		return ErrClosed
	}
	if position < 0 {
		position = 0
	}
	d.seek = seekState{pending: true, position: position}
	d.log.Info("seek requested", "position", position)

	if !d.session.Described {
		return nil
	}
	d.framer.Reset()
	return d.restart()
}

// Finished is called by the transport when a request ends on its own. A nil
// err is a clean end of response.
func (d *Downloader) Finished(err error) {
	d.inflight = false
	if d.done {
		return
	}
	if err != nil {
		d.fail(&TransportError{Err: err})
		return
	}
	if !d.session.Streaming {
		d.fail(ErrNoHeader)
		return
	}
	if n := d.framer.Buffered(); n > 0 {
		d.log.Warn("response ended inside a packet", "buffered", n)
	}

	d.done = true
	d.session.Finished = true
	d.log.Info("download finished", "bytes_written", d.stats.bytesWritten.Load())
	d.sink.NotifyFinished()
}

// fail aborts the request and reports err to the sink once.
func (d *Downloader) fail(err error) {
	if d.done {
		return
	}
	d.Abort()
	d.done = true
	d.log.Error("download failed", "error", err)
	d.sink.NotifyFailed(err)
}

// restart abandons the current response and issues a request for the
// current phase. A new describe request is answered with a fresh set of
// PAIR packets, so the pair experiment starts over.
func (d *Downloader) restart() error {
	d.Abort()
	if !d.session.Described {
		d.pair = pairState{}
	}
	return d.Send()
}

func (d *Downloader) dispatch(p Packet) (int, step, error) {
	h, ok := d.handlers[p.Header.Type]
	if !ok {
		return 0, stepNext, &CorruptionError{Type: p.Header.Type, Sequence: p.Header.Sequence, Reason: "no handler"}
	}
	n, s, err := h(p)
	if err == nil && s != stepNeedMore {
		d.stats.recordPacket(p.Header.Type)
	}
	return n, s, err
}

// Session returns a copy of the negotiation state.
func (d *Downloader) Session() Session {
	s := d.session
	s.PairCount = min(d.pair.seen, 2)
	return s
}

// Selection returns a copy of the stream selection.
func (d *Downloader) Selection() Selection {
	s := d.selection
	s.Candidates = append([]Candidate(nil), d.selection.Candidates...)
	return s
}

// Metadata returns the most recent METADATA packet contents.
func (d *Downloader) Metadata() Metadata {
	return d.metadata
}

// Stats returns a snapshot of the downloader counters. It is safe to call
// from any goroutine.
func (d *Downloader) Stats() Stats {
	return d.stats.snapshot()
}

// MeasuredBandwidth returns the link bandwidth in bits per second estimated
// from the packet-pair experiment, or 0 before all three PAIR packets have
// arrived.
func (d *Downloader) MeasuredBandwidth() int64 {
	if d.pair.seen < 3 {
		return 0
	}
	elapsed := d.pair.times[2].Sub(d.pair.times[0])
	if elapsed <= 0 {
		return 0
	}
	bits := float64(d.pair.sizes[1]+d.pair.sizes[2]) * 8
	return int64(bits / elapsed.Seconds())
}
