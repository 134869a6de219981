package mmsh

import "sync/atomic"

// Stats is a snapshot of downloader counters, exposed for metrics and the
// CLI progress log.
type Stats struct {
	BytesReceived int64 `json:"bytesReceived"`
	ReadCount     int64 `json:"readCount"`
	BytesWritten  int64 `json:"bytesWritten"`
	Requests      int64 `json:"requests"`
	Resends       int64 `json:"resends"`

	HeaderPackets       int64 `json:"headerPackets"`
	DataPackets         int64 `json:"dataPackets"`
	MetadataPackets     int64 `json:"metadataPackets"`
	PairPackets         int64 `json:"pairPackets"`
	StreamChangePackets int64 `json:"streamChangePackets"`
	EndPackets          int64 `json:"endPackets"`
}

// counters are written by the goroutine driving Read and may be read
// concurrently through Stats.
type counters struct {
	bytesReceived atomic.Int64
	readCount     atomic.Int64
	bytesWritten  atomic.Int64
	requests      atomic.Int64
	resends       atomic.Int64

	header       atomic.Int64
	data         atomic.Int64
	metadata     atomic.Int64
	pair         atomic.Int64
	streamChange atomic.Int64
	end          atomic.Int64
}

func (c *counters) recordPacket(t PacketType) {
	switch t {
	case TypeHeader:
		c.header.Add(1)
	case TypeData:
		c.data.Add(1)
	case TypeMetadata:
		c.metadata.Add(1)
	case TypePair:
		c.pair.Add(1)
	case TypeStreamChange:
		c.streamChange.Add(1)
	case TypeEnd:
		c.end.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		BytesReceived:       c.bytesReceived.Load(),
		ReadCount:           c.readCount.Load(),
		BytesWritten:        c.bytesWritten.Load(),
		Requests:            c.requests.Load(),
		Resends:             c.resends.Load(),
		HeaderPackets:       c.header.Load(),
		DataPackets:         c.data.Load(),
		MetadataPackets:     c.metadata.Load(),
		PairPackets:         c.pair.Load(),
		StreamChangePackets: c.streamChange.Load(),
		EndPackets:          c.end.Load(),
	}
}
