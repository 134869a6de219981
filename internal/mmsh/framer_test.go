package mmsh

import (
	"bytes"
	"errors"
	"testing"
)

type recorded struct {
	typ  PacketType
	seq  uint8
	body []byte
}

func recorder(out *[]recorded) dispatchFunc {
	return func(p Packet) (int, step, error) {
		*out = append(*out, recorded{typ: p.Header.Type, seq: p.Header.Sequence, body: append([]byte(nil), p.Body...)})
		return len(p.Body), stepNext, nil
	}
}

func sampleStream() []byte {
	var b []byte
	b = append(b, makePacket(1, TypeHeader, bytes.Repeat([]byte{0xAA}, 40))...)
	b = append(b, makePacket(2, TypeMetadata, []byte("0123456789abcdef"))...)
	for i := range 5 {
		b = append(b, makePacket(uint8(3+i), TypeData, bytes.Repeat([]byte{byte(i)}, 100+i))...)
	}
	b = append(b, makePacket(9, TypeStreamChange, []byte{1, 0, 0, 0})...)
	b = append(b, makePacket(10, TypeData, nil)...)
	b = append(b, makePacket(11, TypeEnd, []byte{0, 0, 0, 0})...)
	return b
}

func TestFramer_ChunkSizeIndependence(t *testing.T) {
	t.Parallel()
	stream := sampleStream()

	var want []recorded
	var whole Framer
	if err := whole.Feed(stream, recorder(&want)); err != nil {
		t.Fatal(err)
	}
	if len(want) != 10 {
		t.Fatalf("got %d packets from whole stream, want 10", len(want))
	}

	for _, size := range []int{1, 2, 3, 4, 5, 7, 13, 64, 1000} {
		var got []recorded
		var f Framer
		for b := stream; len(b) > 0; {
			n := min(size, len(b))
			if err := f.Feed(b[:n], recorder(&got)); err != nil {
				t.Fatalf("chunk %d: %v", size, err)
			}
			b = b[n:]
		}
		if len(got) != len(want) {
			t.Fatalf("chunk %d: got %d packets, want %d", size, len(got), len(want))
		}
		for i := range want {
			if got[i].typ != want[i].typ || got[i].seq != want[i].seq || !bytes.Equal(got[i].body, want[i].body) {
				t.Errorf("chunk %d packet %d: got %v/%d (%d bytes), want %v/%d (%d bytes)",
					size, i, got[i].typ, got[i].seq, len(got[i].body), want[i].typ, want[i].seq, len(want[i].body))
			}
		}
		if f.Buffered() != 0 {
			t.Errorf("chunk %d: %d bytes left buffered", size, f.Buffered())
		}
	}
}

func TestFramer_Conservation(t *testing.T) {
	t.Parallel()
	stream := sampleStream()
	var f Framer
	var got []recorded

	// Stop mid-packet, reset, then feed a partial packet.
	if err := f.Feed(stream[:60], recorder(&got)); err != nil {
		t.Fatal(err)
	}
	f.Reset()
	if err := f.Feed(stream[:10], recorder(&got)); err != nil {
		t.Fatal(err)
	}

	fed, consumed, discarded := f.Counters()
	if fed != 70 {
		t.Errorf("fed = %d, want 70", fed)
	}
	if fed != consumed+discarded+int64(f.Buffered()) {
		t.Errorf("fed %d != consumed %d + discarded %d + buffered %d", fed, consumed, discarded, f.Buffered())
	}
	if consumed != 44 {
		t.Errorf("consumed = %d, want 44", consumed)
	}
	if discarded != 16 {
		t.Errorf("discarded = %d, want 16", discarded)
	}
}

func TestFramer_UnknownTypeStopsDispatch(t *testing.T) {
	t.Parallel()
	var b []byte
	b = append(b, makePacket(0, TypeData, []byte{1, 2, 3})...)
	b = append(b, 0x24, 0x00, 0x02, 0x00, 0xFF, 0xFF)
	b = append(b, makePacket(0, TypeData, []byte{4, 5, 6})...)

	var got []recorded
	var f Framer
	err := f.Feed(b, recorder(&got))

	var ce *CorruptionError
	if !errors.As(err, &ce) {
		t.Fatalf("got error %v, want *CorruptionError", err)
	}
	if !errors.Is(err, ErrProtocolCorruption) {
		t.Error("error does not match ErrProtocolCorruption")
	}
	if ce.Type != 0x00 {
		t.Errorf("corruption type = 0x%02X, want 0x00", uint8(ce.Type))
	}
	if len(got) != 1 {
		t.Errorf("dispatched %d packets, want 1", len(got))
	}
}

func TestFramer_NeedMoreKeepsPacket(t *testing.T) {
	t.Parallel()
	pkt := makePacket(0, TypeData, []byte{1, 2, 3, 4})
	var f Framer
	calls := 0
	wait := func(p Packet) (int, step, error) {
		calls++
		if len(p.buffered) < 8 {
			return 0, stepNeedMore, nil
		}
		return 8, stepNext, nil
	}

	if err := f.Feed(pkt, wait); err != nil {
		t.Fatal(err)
	}
	if f.Buffered() != len(pkt) {
		t.Fatalf("buffered = %d, want %d", f.Buffered(), len(pkt))
	}
	if err := f.Feed([]byte{5, 6, 7, 8}, wait); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
	if f.Buffered() != 0 {
		t.Errorf("buffered = %d, want 0", f.Buffered())
	}
}

func TestFramer_HandlerErrorStops(t *testing.T) {
	t.Parallel()
	b := append(makePacket(0, TypeData, nil), makePacket(0, TypeData, nil)...)
	boom := errors.New("boom")
	calls := 0
	var f Framer
	err := f.Feed(b, func(Packet) (int, step, error) {
		calls++
		return 0, stepNext, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestFramer_HeaderAcrossChunks(t *testing.T) {
	t.Parallel()
	pkt := makePacket(5, TypeData, []byte("payload"))
	var got []recorded
	var f Framer
	for i := range pkt {
		if err := f.Feed(pkt[i:i+1], recorder(&got)); err != nil {
			t.Fatal(err)
		}
		if i < len(pkt)-1 && len(got) != 0 {
			t.Fatalf("dispatched after %d bytes", i+1)
		}
	}
	if len(got) != 1 || string(got[0].body) != "payload" || got[0].seq != 5 {
		t.Errorf("got %+v, want one data packet seq 5 with body %q", got, "payload")
	}
}

func FuzzFramer(f *testing.F) {
	f.Add(sampleStream(), 3)
	f.Add([]byte{0x24, 0x44, 0x00, 0x00}, 1)
	f.Add([]byte{0x24, 0x00, 0x00, 0x00}, 2)

	f.Fuzz(func(t *testing.T, data []byte, chunk int) {
		if chunk <= 0 || chunk > 4096 {
			chunk = 1
		}
		var fr Framer
		var got []recorded
		for b := data; len(b) > 0; {
			n := min(chunk, len(b))
			if err := fr.Feed(b[:n], recorder(&got)); err != nil {
				fr.Reset()
			}
			b = b[n:]
		}
		fed, consumed, discarded := fr.Counters()
		if fed != int64(len(data)) {
			t.Fatalf("fed = %d, want %d", fed, len(data))
		}
		if fed != consumed+discarded+int64(fr.Buffered()) {
			t.Fatalf("fed %d != consumed %d + discarded %d + buffered %d", fed, consumed, discarded, fr.Buffered())
		}
	})
}
