package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordPostsEmbed(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	err := d.Notify(context.Background(), Message{
		Title:  "Reconciliation mismatches",
		Color:  ColorWarning,
		Fields: []Field{{Name: "fid 1", Value: "diff 10"}},
	})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Reconciliation mismatches", got.Embeds[0].Title)
	assert.Equal(t, ColorWarning, got.Embeds[0].Color)
	assert.Len(t, got.Embeds[0].Fields, 1)
}

func TestDiscordReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscord(srv.URL).Notify(context.Background(), Message{Title: "x"})
	assert.ErrorContains(t, err, "429")
}

func TestDiscordWithoutURLIsNoop(t *testing.T) {
	assert.NoError(t, NewDiscord("").Notify(context.Background(), Message{Title: "x"}))
}
