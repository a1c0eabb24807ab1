package clip

import (
	"net/url"
	"strconv"
	"strings"
)

// Interval is a highlight window in VOD seconds, as supplied by the client.
type Interval struct {
	S float64 `json:"s"`
	E float64 `json:"e"`
}

// Segment is one selected media segment, in playlist (= chronological) order.
type Segment struct {
	URL   *url.URL
	Start float64 // seconds from VOD start
	End   float64
	Index int // sequence index within the playlist
}

const extinfPrefix = "#EXTINF:"

// SelectSegments parses an HLS media playlist and returns the segments whose
// start or end boundary falls inside a padded highlight interval, in playlist
// order. Relative segment URIs are resolved against base.
//
// The boundary test intentionally checks each endpoint against the padded
// window rather than true interval intersection; a segment spanning an entire
// padded interval with both boundaries outside it is not selected. With the
// default 20s padding and Twitch's ~10s segments that case cannot occur.
func SelectSegments(playlist string, base *url.URL, highlights []Interval, padding float64) ([]Segment, error) {
	var out []Segment
	var start float64
	duration := 0.0
	haveDuration := false
	index := 0

	for lineNum, raw := range strings.Split(playlist, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, extinfPrefix) {
			v := strings.TrimPrefix(line, extinfPrefix)
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			d, err := strconv.ParseFloat(v, 64)
			if err != nil || d < 0 {
				return nil, &ParseError{Line: lineNum + 1, Msg: "malformed EXTINF duration " + strconv.Quote(v)}
			}
			duration = d
			haveDuration = true
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		// A non-directive line is a segment URI.
		if !haveDuration {
			return nil, &ParseError{Line: lineNum + 1, Msg: "segment URI without preceding EXTINF"}
		}
		end := start + duration
		if overlaps(start, end, highlights, padding) {
			u, err := url.Parse(line)
			if err != nil {
				return nil, &ParseError{Line: lineNum + 1, Msg: "malformed segment URI"}
			}
			out = append(out, Segment{URL: base.ResolveReference(u), Start: start, End: end, Index: index})
		}
		start = end
		haveDuration = false
		index++
	}
	return out, nil
}

// overlaps reports whether either segment boundary falls inside any padded
// highlight window (boundaries inclusive).
func overlaps(start, end float64, highlights []Interval, padding float64) bool {
	for _, h := range highlights {
		lo, hi := h.S-padding, h.E+padding
		if (lo <= start && start <= hi) || (lo <= end && end <= hi) {
			return true
		}
	}
	return false
}
