// Package analytics turns a VOD's chat history into fixed-width activity
// buckets, ranks emote usage, and flags statistically unusual intervals of
// viewer engagement.
package analytics

import (
	"math"
	"sort"

	"autoclip/chat"
)

// EmoteTotal is one entry of the global emote ranking.
type EmoteTotal struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	Total  int    `json:"total"`
}

// Meta summarizes a chat history independent of any bucketing period.
type Meta struct {
	Activity  int          `json:"activity"`   // total line count
	AllEmotes int          `json:"all_emotes"` // total emote occurrences
	Emotes    []EmoteTotal `json:"emotes"`     // ranked by total descending
}

// Chart holds the per-bucket series. Lines and Chatters are distinct counts
// (set cardinalities); Emotes counts matching emote occurrences and is nil
// unless an emote filter was applied. All present series share one length.
type Chart struct {
	Period   int   `json:"period"`
	Lines    []int `json:"lines"`
	Chatters []int `json:"chatters"`
	Emotes   []int `json:"emotes,omitempty"`
}

// Aggregate runs the two-pass aggregation over lines.
//
// Pass 1 counts activity and builds the emote ranking. Pass 2 buckets lines by
// floor(offset/period); with an empty filter every line contributes, otherwise
// a line contributes only when one of its emotes is selected, and each matching
// occurrence bumps the bucket's emote hit count. Inputs are treated as already
// validated; degenerate inputs produce well-defined zero results, never errors.
func Aggregate(lines []chat.Line, period float64, selectedEmoteIdx []int) (Meta, Chart) {
	p := int(math.Ceil(period))
	if p < 1 {
		p = 1
	}

	maxOffset := 0
	for _, l := range lines {
		if l.Offset > maxOffset {
			maxOffset = l.Offset
		}
	}
	numBuckets := maxOffset/p + 1

	// Pass 1: metadata and emote ranking.
	meta := Meta{Emotes: []EmoteTotal{}}
	totals := make(map[string]int)
	order := []string{} // first-seen order, the tie-break for equal totals
	byText := make(map[string]EmoteTotal)
	for _, l := range lines {
		meta.Activity++
		for _, e := range l.Emotes {
			meta.AllEmotes++
			if _, seen := totals[e.Text]; !seen {
				order = append(order, e.Text)
				byText[e.Text] = EmoteTotal{ID: e.ID, Text: e.Text, Source: e.Source}
			}
			totals[e.Text]++
		}
	}
	for _, text := range order {
		et := byText[text]
		et.Total = totals[text]
		meta.Emotes = append(meta.Emotes, et)
	}
	sort.SliceStable(meta.Emotes, func(i, j int) bool {
		return meta.Emotes[i].Total > meta.Emotes[j].Total
	})

	// Pass 2: bucketed series.
	selected := make(map[string]struct{}, len(selectedEmoteIdx))
	for _, idx := range selectedEmoteIdx {
		if idx >= 0 && idx < len(meta.Emotes) {
			selected[meta.Emotes[idx].Text] = struct{}{}
		}
	}

	chart := Chart{
		Period:   p,
		Lines:    make([]int, numBuckets),
		Chatters: make([]int, numBuckets),
	}
	if len(selected) > 0 {
		chart.Emotes = make([]int, numBuckets)
	}
	lineSets := make([]map[string]struct{}, numBuckets)
	chatterSets := make([]map[string]struct{}, numBuckets)
	for b := range lineSets {
		lineSets[b] = make(map[string]struct{})
		chatterSets[b] = make(map[string]struct{})
	}

	for _, l := range lines {
		b := l.Offset / p

		if len(selected) == 0 {
			lineSets[b][l.ID] = struct{}{}
			// Anonymous lines share the "" pseudo-commenter on purpose; they
			// collapse into one distinct chatter per bucket.
			chatterSets[b][l.CommenterID] = struct{}{}
			continue
		}

		for _, e := range l.Emotes {
			if _, ok := selected[e.Text]; ok {
				chart.Emotes[b]++
				lineSets[b][l.ID] = struct{}{}
				chatterSets[b][l.CommenterID] = struct{}{}
			}
		}
	}

	for b := 0; b < numBuckets; b++ {
		chart.Lines[b] = len(lineSets[b])
		chart.Chatters[b] = len(chatterSets[b])
	}

	return meta, chart
}
