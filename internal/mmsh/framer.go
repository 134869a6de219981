package mmsh

// step tells the framer what to do after a handler has seen a packet.
type step int

const (
	// stepNext consumes the packet and continues with the next one.
	stepNext step = iota
	// stepNeedMore leaves the packet buffered until more bytes arrive.
	stepNeedMore
	// stepStop abandons the current buffer; the handler has already reset
	// the framer.
	stepStop
)

// dispatchFunc handles one complete packet and reports how many bytes after
// the framing header it consumed.
type dispatchFunc func(p Packet) (consumed int, s step, err error)

// Framer reassembles framed packets from arbitrarily chunked input.
type Framer struct {
	buf buffer

	fed       int64
	consumed  int64
	discarded int64
}

// Feed appends chunk and dispatches every complete packet now buffered. It
// returns a *CorruptionError on an unknown type byte, in which case nothing
// after the offending header is dispatched, or the first error a handler
// returns.
func (f *Framer) Feed(chunk []byte, dispatch dispatchFunc) error {
	f.buf.write(chunk)
	f.fed += int64(len(chunk))
	defer f.buf.compact()

	for {
		b := f.buf.bytes()
		if len(b) < HeaderLen {
			return nil
		}

		h := parseHeader(b)
		if !h.Type.Valid() {
			return &CorruptionError{Type: h.Type, Sequence: h.Sequence, Reason: "unknown packet type"}
		}

		end := HeaderLen + int(h.Length)
		if len(b) < end {
			return nil
		}

		n, s, err := dispatch(Packet{Header: h, Body: b[HeaderLen:end], buffered: b[HeaderLen:]})
		if err != nil {
			return err
		}
		switch s {
		case stepNeedMore, stepStop:
			return nil
		}
		if HeaderLen+n > len(b) {
			return nil
		}

		f.buf.advance(HeaderLen + n)
		f.consumed += int64(HeaderLen + n)
	}
}

// Reset drops every buffered byte.
func (f *Framer) Reset() {
	f.discarded += int64(f.buf.reset())
}

// Buffered returns the number of bytes waiting for the rest of a packet.
func (f *Framer) Buffered() int {
	return f.buf.len()
}

// Counters returns the total bytes fed, consumed by packets, and discarded by
// Reset. fed always equals consumed + discarded + Buffered().
func (f *Framer) Counters() (fed, consumed, discarded int64) {
	return f.fed, f.consumed, f.discarded
}
