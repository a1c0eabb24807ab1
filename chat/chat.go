// Package chat loads the full chat history of a Twitch VOD: comments are paged
// from the GQL API in parallel time chunks, deduplicated by id, and decorated
// with resolved emote references before anything downstream sees them.
package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autoclip/telemetry"
	"autoclip/twitchapi"
)

// Line is one deduplicated, emote-resolved chat message.
type Line struct {
	ID            string               `json:"id"`
	Offset        int                  `json:"offset"` // seconds into the VOD
	CommenterID   string               `json:"commenterID,omitempty"`
	CommenterName string               `json:"commenterName,omitempty"`
	Text          string               `json:"text"`
	Emotes        []twitchapi.EmoteRef `json:"emotes"`
}

// History is a VOD's chat history plus the metadata the frontend caches on.
type History struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Lines  []Line `json:"lines"`
}

// maxVODSeconds caps the open-ended last chunk (Twitch streams top out at 72h).
const maxVODSeconds = 72 * 60 * 60

// Loader fetches chat histories. Parallelism controls how many time chunks are
// paged concurrently; higher values load long VODs faster at the cost of some
// redundant overlap at chunk boundaries.
type Loader struct {
	GQL         *twitchapi.GQLClient
	Emotes      *twitchapi.EmoteClient
	Parallelism int
}

// Load fetches the whole chat history for a VOD.
func (ld *Loader) Load(ctx context.Context, videoID string) (*History, error) {
	start := time.Now()
	if err := ld.GQL.SetIntegrity(ctx); err != nil {
		return nil, err
	}
	md, err := ld.GQL.VideoMetadata(ctx, videoID)
	if err != nil {
		return nil, err
	}
	emoteMap, err := ld.Emotes.ThirdPartyEmotes(ctx, md.OwnerID)
	if err != nil {
		return nil, err
	}

	parallelism := ld.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	checkpoints := make([]int, parallelism)
	for i := range checkpoints {
		checkpoints[i] = i * md.LengthSeconds / parallelism
	}

	chunks := make([][]twitchapi.CommentNode, parallelism)
	g, gctx := errgroup.WithContext(ctx)
	for i, cp := range checkpoints {
		end := maxVODSeconds
		if i+1 < len(checkpoints) {
			end = checkpoints[i+1]
		}
		// Page 5 seconds past the next checkpoint so boundary comments aren't
		// dropped; the id-keyed merge below eats the overlap.
		end += 5
		g.Go(func() error {
			nodes, err := ld.pageChunk(gctx, videoID, cp, end)
			if err != nil {
				return err
			}
			chunks[i] = nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dedup := make(map[string]twitchapi.CommentNode)
	for _, nodes := range chunks {
		for _, n := range nodes {
			dedup[n.ID] = n
		}
	}

	lines := make([]Line, 0, len(dedup))
	for _, n := range dedup {
		lines = append(lines, buildLine(n, emoteMap))
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].Offset != lines[j].Offset {
			return lines[i].Offset < lines[j].Offset
		}
		return lines[i].ID < lines[j].ID
	})

	telemetry.ChatLoadsTotal.Inc()
	telemetry.ChatLoadDuration.Observe(time.Since(start).Seconds())
	slog.Debug("chat history loaded",
		slog.String("video_id", videoID),
		slog.Int("lines", len(lines)),
		slog.Duration("duration", time.Since(start)))

	return &History{ID: videoID, Status: md.Status, Lines: lines}, nil
}

// pageChunk pages comments starting at offset start until an edge passes end.
func (ld *Loader) pageChunk(ctx context.Context, videoID string, start, end int) ([]twitchapi.CommentNode, error) {
	page, err := ld.GQL.VideoComments(ctx, videoID, "contentOffsetSeconds", start)
	if err != nil {
		return nil, err
	}
	var nodes []twitchapi.CommentNode
	for _, e := range page.Edges {
		nodes = append(nodes, e.Node)
	}
	if lastOffset(page) > end {
		return nodes, nil
	}
	for page.PageInfo.HasNextPage && len(page.Edges) > 0 {
		cursor := page.Edges[len(page.Edges)-1].Cursor
		if cursor == "" {
			break
		}
		page, err = ld.GQL.VideoComments(ctx, videoID, "cursor", cursor)
		if err != nil {
			return nil, err
		}
		for _, e := range page.Edges {
			nodes = append(nodes, e.Node)
		}
		if lastOffset(page) > end {
			break
		}
	}
	return nodes, nil
}

func lastOffset(page *twitchapi.CommentPage) int {
	if len(page.Edges) == 0 {
		return 0
	}
	return page.Edges[len(page.Edges)-1].Node.ContentOffsetSeconds
}

// buildLine resolves a comment's emotes: native emote fragments become twitch
// refs; plain fragment text is matched word-by-word against the third-party map.
func buildLine(n twitchapi.CommentNode, emoteMap map[string]twitchapi.EmoteRef) Line {
	var emotes []twitchapi.EmoteRef
	var text strings.Builder
	for _, f := range n.Message.Fragments {
		text.WriteString(f.Text)
		if f.Emote != nil && f.Emote.EmoteID != "" {
			emotes = append(emotes, twitchapi.EmoteRef{
				ID:     f.Emote.EmoteID,
				Text:   f.Text,
				Source: twitchapi.SourceTwitch,
			})
			continue
		}
		for _, w := range strings.Split(f.Text, " ") {
			if ref, ok := emoteMap[w]; ok {
				emotes = append(emotes, ref)
			}
		}
	}
	l := Line{
		ID:     n.ID,
		Offset: n.ContentOffsetSeconds,
		Text:   text.String(),
		Emotes: emotes,
	}
	if n.Commenter != nil {
		l.CommenterID = n.Commenter.ID
		l.CommenterName = n.Commenter.DisplayName
	}
	return l
}
