package mmsh

import (
	"bytes"
	"strconv"
	"strings"
)

// Features is the set of HTTP streaming features a server advertises in a
// METADATA packet.
type Features uint32

// Known streaming features.
const (
	FeatureBroadcast Features = 1 << iota
	FeatureSeekable
	FeaturePlaylist
	FeatureSkipBackward
	FeatureSkipForward
	FeatureReliable
)

var featureNames = map[string]Features{
	"broadcast":    FeatureBroadcast,
	"seekable":     FeatureSeekable,
	"playlist":     FeaturePlaylist,
	"skipbackward": FeatureSkipBackward,
	"skipforward":  FeatureSkipForward,
	"reliable":     FeatureReliable,
}

// Has reports whether every feature in f2 is set.
func (f Features) Has(f2 Features) bool {
	return f&f2 == f2
}

// Metadata is the decoded payload of a METADATA packet.
type Metadata struct {
	PlaylistGenID uint32
	BroadcastID   uint32
	Features      Features

	// Extra holds keys the parser does not interpret.
	Extra map[string]string
}

// parseMetadata decodes a NUL-terminated list of the form
//
//	playlist-gen-id=1,broadcast-id=2,features="broadcast,seekable"
//
// Malformed entries are skipped.
func parseMetadata(b []byte) Metadata {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}

	var md Metadata
	rest := string(b)
	for rest != "" {
		key, after, ok := strings.Cut(rest, "=")
		if !ok {
			break
		}
		key = strings.TrimSpace(key)

		var value string
		if strings.HasPrefix(after, `"`) {
			value, after, _ = strings.Cut(after[1:], `"`)
			after = strings.TrimPrefix(after, ",")
		} else {
			value, after, _ = strings.Cut(after, ",")
		}
		rest = after

		switch key {
		case "playlist-gen-id":
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				md.PlaylistGenID = uint32(v)
			}
		case "broadcast-id":
			if v, err := strconv.ParseUint(value, 10, 32); err == nil {
				md.BroadcastID = uint32(v)
			}
		case "features":
			md.Features = parseFeatures(value)
		case "":
		default:
			if md.Extra == nil {
				md.Extra = make(map[string]string)
			}
			md.Extra[key] = value
		}
	}
	return md
}

func parseFeatures(s string) Features {
	var f Features
	for _, name := range strings.Split(s, ",") {
		f |= featureNames[strings.ToLower(strings.TrimSpace(name))]
	}
	return f
}
