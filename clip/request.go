package clip

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// Request is a clip assembly request as sent by the client.
type Request struct {
	Video      string     `json:"video"`
	Highlights []Interval `json:"highlights"`
}

// ParseRequest decodes and validates a raw request payload. Highlights are
// normalized to ascending start order so that equivalent requests hash alike.
func ParseRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &ValidationError{Msg: "malformed payload"}
	}
	if len(req.Video) < 4 {
		return nil, &ValidationError{Msg: "video id too short"}
	}
	if len(req.Highlights) == 0 {
		return nil, &ValidationError{Msg: "no highlights"}
	}
	for _, h := range req.Highlights {
		if h.E < h.S {
			return nil, &ValidationError{Msg: fmt.Sprintf("highlight end %g before start %g", h.E, h.S)}
		}
	}
	sort.SliceStable(req.Highlights, func(i, j int) bool {
		return req.Highlights[i].S < req.Highlights[j].S
	})
	return &req, nil
}

// Hash derives a short stable identifier from the normalized highlight set.
// The same intervals in any input order produce the same hash.
func (r *Request) Hash() string {
	payload, _ := json.Marshal(r.Highlights)
	sum := sha256.Sum256(payload)
	enc := base64.StdEncoding.EncodeToString(sum[:])
	clean := make([]byte, 0, len(enc))
	for i := 0; i < len(enc); i++ {
		c := enc[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			clean = append(clean, c)
		}
	}
	if len(clean) > 9 {
		clean = clean[1:9]
	}
	return string(clean)
}

// Filename is the Content-Disposition filename for the assembled clip.
func (r *Request) Filename() string {
	return fmt.Sprintf("autoclip_%s_%s.mp4", r.Video, r.Hash())
}
