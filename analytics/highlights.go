package analytics

import "sort"

// Highlight is a contiguous run of buckets with outlier engagement.
type Highlight struct {
	Start int `json:"start"` // seconds, inclusive
	End   int `json:"end"`   // seconds, exclusive
	Peak  int `json:"peak"`  // highest chatter count inside the run
}

// DetectHighlights flags buckets whose distinct-chatter count strictly exceeds
// the one-sided Tukey fence p75 + 1.5*(p75 - p25) and merges bucket-adjacent
// runs into intervals. A constant series yields no highlights because the
// comparison is strict. The unique-chatters series is used as the most
// manipulation-resistant engagement signal.
func DetectHighlights(chatterCounts []int, period int) []Highlight {
	if len(chatterCounts) == 0 {
		return nil
	}
	sorted := make([]int, len(chatterCounts))
	copy(sorted, chatterCounts)
	sort.Ints(sorted)

	n := len(sorted)
	p25 := float64(sorted[n/4])
	p75 := float64(sorted[n*3/4])
	cutoff := p75 + 1.5*(p75-p25)

	var highlights []Highlight
	for b, v := range chatterCounts {
		if float64(v) <= cutoff {
			continue
		}
		t := b * period
		if len(highlights) > 0 && highlights[len(highlights)-1].End == t {
			h := &highlights[len(highlights)-1]
			h.End = t + period
			if v > h.Peak {
				h.Peak = v
			}
		} else {
			highlights = append(highlights, Highlight{Start: t, End: t + period, Peak: v})
		}
	}
	return highlights
}
