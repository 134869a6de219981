package mmsh

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultUserAgent identifies the client as a Windows Media player, which
// MMSH servers require before they answer with framed packets.
const DefaultUserAgent = "NSPlayer/11.1.0.3856"

const (
	supportedFeatures = "com.microsoft.wm.srvppair,com.microsoft.wm.sswitch,com.microsoft.wm.predstrm,com.microsoft.wm.startupprofile"

	pragmaPacketPair = "packet-pair-experiment=1"
	pragmaRate       = "rate=1.000000,stream-offset=0:0,max-duration=0"
	pragmaPlayStream = "xPlayStrm=1"
	pragmaBandwidth  = "LinkBW=2147483647,rate=1.000, AccelDuration=20000, AccelBW=2147483647"

	// seekPacketNum asks the server to pick the packet nearest the
	// requested stream time.
	seekPacketNum = 4294967295
)

// Request is one HTTP request the transport should issue.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// describeRequest builds the discovery request sent before any stream is
// known.
func describeRequest(rawURL, userAgent, clientGUID string) *Request {
	req := baseRequest(rawURL, userAgent, clientGUID)
	req.Header.Set("Supported", supportedFeatures)
	req.Header.Add("Pragma", pragmaPacketPair)
	return req
}

// playRequest builds the streaming request for the selected streams. When
// seek is set the server starts at the given stream time in milliseconds.
//
// Each stream-switch directive must be on its own Pragma line, which the
// header API folds into one; they travel in the body instead.
func playRequest(rawURL, userAgent, clientGUID string, sel *Selection, seek bool, streamTimeMS int64) *Request {
	req := baseRequest(rawURL, userAgent, clientGUID)
	req.Header.Add("Pragma", pragmaRate)
	req.Header.Add("Pragma", pragmaPlayStream)
	req.Header.Add("Pragma", pragmaBandwidth)
	if seek {
		req.Header.Add("Pragma", fmt.Sprintf("stream-time=%d, packet-num=%d", streamTimeMS, uint64(seekPacketNum)))
	}
	req.Body = []byte(streamSwitchBody(sel))
	return req
}

func baseRequest(rawURL, userAgent, clientGUID string) *Request {
	h := make(http.Header)
	h.Set("User-Agent", userAgent)
	h.Add("Pragma", "no-cache,xClientGUID={"+clientGUID+"}")
	return &Request{Method: http.MethodGet, URL: rawURL, Header: h}
}

func streamSwitchBody(sel *Selection) string {
	if sel.Marker != 0 {
		return fmt.Sprintf("Pragma: stream-switch-count=3\r\nPragma: stream-switch-entry=ffff:%d:0 ffff:%d:0 ffff:%d:0\r\n\r\n",
			sel.Marker, sel.BestVideo, sel.BestAudio)
	}
	return fmt.Sprintf("Pragma: stream-switch-count=2\r\nPragma: stream-switch-entry=ffff:%d:0 ffff:%d:0\r\n\r\n",
		sel.BestVideo, sel.BestAudio)
}

// HTTPURL rewrites an mms:// or mmsh:// URL to the http:// URL an MMSH server
// answers on. http and https URLs are returned unchanged.
func HTTPURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("mmsh: parse url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mms", "mmsh", "http":
		u.Scheme = "http"
	case "https":
	default:
		return "", fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("mmsh: url %q has no host", raw)
	}
	return u.String(), nil
}
