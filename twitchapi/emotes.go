package twitchapi

import (
	"context"
	"fmt"
	"net/http"

	"autoclip/cache"
)

const (
	defaultBTTVURL = "https://api.betterttv.net/3"
	default7TVURL  = "https://7tv.io/v3"
)

// EmoteClient resolves a channel's third-party emotes (BTTV, FFZ via the BTTV
// mirror, and 7TV). Each provider degrades to an empty set on failure so a
// broken provider never blocks chat loading.
type EmoteClient struct {
	BTTVBaseURL    string
	SevenTVBaseURL string
	HTTPClient     *http.Client
	Cache          *cache.Cache
}

// ThirdPartyEmotes returns a text-keyed map of all third-party emotes active on
// a channel. Later providers win on text collisions: bttv global, bttv channel,
// bttv shared, ffz, 7tv.
func (ec *EmoteClient) ThirdPartyEmotes(ctx context.Context, channelID string) (map[string]EmoteRef, error) {
	bttv := ec.BTTVBaseURL
	if bttv == "" {
		bttv = defaultBTTVURL
	}
	seventv := ec.SevenTVBaseURL
	if seventv == "" {
		seventv = default7TVURL
	}

	type codeEmote struct {
		ID   string `json:"id"`
		Code string `json:"code"`
	}
	type ffzEmote struct {
		ID   int    `json:"id"`
		Code string `json:"code"`
	}

	var global []codeEmote
	if err := ec.getJSON(ctx, bttv+"/cached/emotes/global", &global); err != nil {
		global = nil
	}
	var user struct {
		ChannelEmotes []codeEmote `json:"channelEmotes"`
		SharedEmotes  []codeEmote `json:"sharedEmotes"`
	}
	if err := ec.getJSON(ctx, bttv+"/cached/users/twitch/"+channelID, &user); err != nil {
		user.ChannelEmotes, user.SharedEmotes = nil, nil
	}
	var ffz []ffzEmote
	if err := ec.getJSON(ctx, bttv+"/cached/frankerfacez/users/twitch/"+channelID, &ffz); err != nil {
		ffz = nil
	}
	var stv struct {
		EmoteSet struct {
			Emotes []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"emotes"`
		} `json:"emote_set"`
	}
	if err := ec.getJSON(ctx, seventv+"/users/twitch/"+channelID, &stv); err != nil {
		stv.EmoteSet.Emotes = nil
	}

	out := make(map[string]EmoteRef)
	for _, e := range global {
		out[e.Code] = EmoteRef{ID: e.ID, Text: e.Code, Source: SourceBTTV}
	}
	for _, e := range user.ChannelEmotes {
		out[e.Code] = EmoteRef{ID: e.ID, Text: e.Code, Source: SourceBTTV}
	}
	for _, e := range user.SharedEmotes {
		out[e.Code] = EmoteRef{ID: e.ID, Text: e.Code, Source: SourceBTTV}
	}
	for _, e := range ffz {
		out[e.Code] = EmoteRef{ID: fmt.Sprintf("%d", e.ID), Text: e.Code, Source: SourceFFZ}
	}
	for _, e := range stv.EmoteSet.Emotes {
		out[e.Name] = EmoteRef{ID: e.ID, Text: e.Name, Source: Source7TV}
	}
	return out, nil
}

func (ec *EmoteClient) getJSON(ctx context.Context, url string, out any) error {
	fetch := func(ctx context.Context) (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := orDefault(ec.HTTPClient).Do(req)
		if err != nil {
			return nil, err
		}
		defer closeBody(resp)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &APIError{Op: "emotes", Status: resp.StatusCode}
		}
		buf, err := readAll(resp)
		if err != nil {
			return nil, err
		}
		return buf, nil
	}
	var raw any
	var err error
	if ec.Cache != nil {
		raw, err = ec.Cache.GetOrFetch(ctx, "emotes:"+url, fetch)
	} else {
		raw, err = fetch(ctx)
	}
	if err != nil {
		return err
	}
	return unmarshal(raw.([]byte), out)
}
