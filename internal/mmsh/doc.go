// Package mmsh implements the client side of MMS over HTTP: reassembly of
// framed packets from a chunked response body, the describe-then-play
// request lifecycle, ASF stream selection, and placement of ASF data packets
// at their offsets in the reassembled file.
//
// The central type is [Downloader]. A [Transport] issues its requests and
// feeds response bytes back through [Downloader.Read]; decoded bytes go to a
// [Sink]. Packet framing is exposed separately as [Framer].
//
// This package performs no I/O of its own; see
// [github.com/zsiec/mmsget/internal/httpstream] for the HTTP transport.
package mmsh
