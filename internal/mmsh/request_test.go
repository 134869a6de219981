package mmsh

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"testing"
)

const testGUID = "3300AD50-2C39-46C0-AE0A-2A8F4A1A2B3C"

func TestDescribeRequest(t *testing.T) {
	t.Parallel()
	req := describeRequest("http://example.com/a.asf", DefaultUserAgent, testGUID)

	if req.Method != http.MethodGet {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if got := req.Header.Get("User-Agent"); got != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
	}
	if got := req.Header.Get("Supported"); got != supportedFeatures {
		t.Errorf("Supported = %q, want %q", got, supportedFeatures)
	}
	pragmas := req.Header.Values("Pragma")
	want := []string{"no-cache,xClientGUID={" + testGUID + "}", "packet-pair-experiment=1"}
	if !slices.Equal(pragmas, want) {
		t.Errorf("Pragma = %q, want %q", pragmas, want)
	}
	if len(req.Body) != 0 {
		t.Errorf("describe body = %q, want empty", req.Body)
	}
}

func TestPlayRequest(t *testing.T) {
	t.Parallel()
	sel := &Selection{BestAudio: 3, BestVideo: 5}
	req := playRequest("http://example.com/a.asf", "agent", testGUID, sel, false, 0)

	pragmas := req.Header.Values("Pragma")
	for _, want := range []string{pragmaRate, pragmaPlayStream, pragmaBandwidth} {
		if !slices.Contains(pragmas, want) {
			t.Errorf("Pragma %q missing from %q", want, pragmas)
		}
	}
	for _, p := range pragmas {
		if strings.Contains(p, "stream-time") {
			t.Errorf("unexpected seek pragma %q", p)
		}
	}
	if req.Header.Get("Supported") != "" {
		t.Error("play request should not advertise Supported")
	}

	wantBody := "Pragma: stream-switch-count=2\r\nPragma: stream-switch-entry=ffff:5:0 ffff:3:0\r\n\r\n"
	if string(req.Body) != wantBody {
		t.Errorf("body = %q, want %q", req.Body, wantBody)
	}
}

func TestPlayRequest_Marker(t *testing.T) {
	t.Parallel()
	sel := &Selection{BestAudio: 1, BestVideo: 2, Marker: 3}
	req := playRequest("http://example.com/a.asf", "agent", testGUID, sel, false, 0)

	wantBody := "Pragma: stream-switch-count=3\r\nPragma: stream-switch-entry=ffff:3:0 ffff:2:0 ffff:1:0\r\n\r\n"
	if string(req.Body) != wantBody {
		t.Errorf("body = %q, want %q", req.Body, wantBody)
	}
}

func TestPlayRequest_Seek(t *testing.T) {
	t.Parallel()
	sel := &Selection{BestAudio: 1, BestVideo: 2}
	req := playRequest("http://example.com/a.asf", "agent", testGUID, sel, true, 90500)

	want := "stream-time=90500, packet-num=4294967295"
	if !slices.Contains(req.Header.Values("Pragma"), want) {
		t.Errorf("Pragma %q missing from %q", want, req.Header.Values("Pragma"))
	}
}

func TestHTTPURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"mms://media.example.com/live", "http://media.example.com/live", nil},
		{"mmsh://media.example.com:8080/a.asf?x=1", "http://media.example.com:8080/a.asf?x=1", nil},
		{"MMS://media.example.com/live", "http://media.example.com/live", nil},
		{"http://media.example.com/live", "http://media.example.com/live", nil},
		{"https://media.example.com/live", "https://media.example.com/live", nil},
		{"rtsp://media.example.com/live", "", ErrUnsupportedScheme},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := HTTPURL(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("HTTPURL(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("HTTPURL(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("HTTPURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHTTPURL_NoHost(t *testing.T) {
	t.Parallel()
	if _, err := HTTPURL("mms:///path"); err == nil {
		t.Error("expected error for url without host")
	}
}
