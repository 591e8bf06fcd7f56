package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"video", "audio", "image"} {
		k, err := ParseKind(name)
		require.NoError(t, err)
		require.Equal(t, name, k.Name())
	}

	_, err := ParseKind("hologram")
	require.Error(t, err)
}

func TestKindBehavior(t *testing.T) {
	require.True(t, Video{}.Playable())
	require.True(t, Audio{}.Playable())
	require.False(t, Image{}.Playable())
	require.Equal(t, "videos", Video{}.Bucket())
	require.Equal(t, "images", Image{}.Bucket())
}

func TestPlaybackStateJSON(t *testing.T) {
	b, err := json.Marshal(PlaybackState{ActiveIndex: NoActive, IsPlaying: true, Volume: 1})
	require.NoError(t, err)
	require.JSONEq(t, `{"activeIndex":null,"isPlaying":true,"volume":1,"loading":false}`, string(b))

	b, err = json.Marshal(PlaybackState{ActiveIndex: 2, Volume: 0})
	require.NoError(t, err)
	require.JSONEq(t, `{"activeIndex":2,"isPlaying":false,"volume":0,"loading":false}`, string(b))
}

func TestMediaItemJSONIncludesKind(t *testing.T) {
	item := MediaItem{ID: "m1", Kind: Audio{}, Source: Source{URL: "https://cdn/a.mp3"}}
	b, err := json.Marshal(item)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	require.Equal(t, "audio", out["kind"])
	require.Equal(t, "https://cdn/a.mp3", out["url"])
	require.Equal(t, "m1", out["id"])
}
