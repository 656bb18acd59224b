// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT
// no-cloc

package odds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staranto/tennisbet/internal/store"
)

const sportsJSON = `[
  {"key":"tennis_atp_qatar_open","group":"Tennis","title":"ATP Qatar Open","active":true},
  {"key":"soccer_epl","group":"Soccer","title":"EPL","active":true},
  {"key":"tennis_wta_dubai","group":"Tennis","title":"WTA Dubai","active":true},
  {"key":"tennis_atp_dubai","group":"Tennis","title":"ATP Dubai","active":true}
]`

func eventsJSON(sport string, ids ...string) string {
	var parts []string
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf(
			`{"id":%q,"sport_key":%q,"sport_title":"T","commence_time":"2025-03-05T14:30:00Z","home_team":"A","away_team":"B"}`,
			id, sport))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func oddsJSON(title, eventID string) string {
	return fmt.Sprintf(`{
  "id": %q,
  "sport_title": %q,
  "commence_time": "2025-03-05T14:30:00Z",
  "bookmakers": [
    {"key":"unibet_fr","title":"Unibet","markets":[{"key":"h2h","outcomes":[
      {"name":"Carlos Alcaraz","price":1.45},{"name":"Andrey Rublev","price":2.75}]}]},
    {"key":"betclic","title":"Betclic","markets":[{"key":"spreads","outcomes":[]}]},
    {"key":"winamax_fr","title":"Winamax","markets":[{"key":"h2h","outcomes":[
      {"name":"Carlos Alcaraz","price":1.5},{"name":"Andrey Rublev","price":2.6}]}]}
  ]
}`, eventID, title)
}

type fakeAPI struct {
	requests int32
	fail     map[string]int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.requests, 1)
	if r.URL.Query().Get("apiKey") != "token" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"API key is missing"}`))
		return
	}
	if code, ok := f.fail[r.URL.Path]; ok {
		w.WriteHeader(code)
		_, _ = w.Write([]byte(`{"message":"quota exceeded"}`))
		return
	}

	w.Header().Set("x-requests-remaining", "480")
	switch r.URL.Path {
	case "/v4/sports/":
		_, _ = w.Write([]byte(sportsJSON))
	case "/v4/sports/tennis_atp_qatar_open/events/":
		_, _ = w.Write([]byte(eventsJSON("tennis_atp_qatar_open", "e1", "e2")))
	case "/v4/sports/tennis_atp_dubai/events/":
		_, _ = w.Write([]byte(eventsJSON("tennis_atp_dubai", "e3")))
	default:
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) == 6 && parts[5] == "odds" {
			q := r.URL.Query()
			if q.Get("markets") != "h2h" || q.Get("oddsFormat") != "decimal" || q.Get("dateFormat") != "iso" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(oddsJSON(parts[2]+"/"+q.Get("regions"), parts[4])))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, api *fakeAPI, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "token", append([]Option{WithHTTPClient(srv.Client())}, opts...)...)
}

func TestSportsAndEvents(t *testing.T) {
	c := newTestClient(t, &fakeAPI{})
	ctx := context.Background()

	sports, err := c.Sports(ctx)
	require.NoError(t, err)
	require.Len(t, sports, 4)
	assert.Equal(t, Sport{Key: "tennis_atp_qatar_open", Group: "Tennis", Title: "ATP Qatar Open", Active: true}, sports[0])

	events, err := c.Events(ctx, "tennis_atp_qatar_open")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e1", events[0].ID)
	assert.Equal(t, "2025-03-05T14:30:00Z", events[0].CommenceTime)
}

func TestEventOdds(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, WithRegions("fr", "uk"))

	quotes, err := c.EventOdds(context.Background(), "tennis_atp_qatar_open", "e1")
	require.NoError(t, err)
	require.Len(t, quotes, 2, "bookmaker without h2h is skipped")

	assert.Equal(t, Quote{
		Tournament:   "tennis_atp_qatar_open/fr,uk",
		CommenceTime: "2025-03-05T14:30:00Z",
		Player1:      "Carlos Alcaraz",
		Odds1:        1.45,
		Player2:      "Andrey Rublev",
		Odds2:        2.75,
		Bookmaker:    "Unibet",
	}, quotes[0])
	assert.Equal(t, "Winamax", quotes[1].Bookmaker)
}

func TestTennisOdds(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api, WithFanout(2))

	quotes, err := c.TennisOdds(context.Background())
	require.NoError(t, err)

	// 3 events across the two ATP sports, 2 usable bookmakers each.
	require.Len(t, quotes, 6)
	var order []string
	for _, q := range quotes {
		order = append(order, strings.SplitN(q.Tournament, "/", 2)[0]+":"+q.Bookmaker)
	}
	assert.Equal(t, []string{
		"tennis_atp_qatar_open:Unibet", "tennis_atp_qatar_open:Winamax",
		"tennis_atp_qatar_open:Unibet", "tennis_atp_qatar_open:Winamax",
		"tennis_atp_dubai:Unibet", "tennis_atp_dubai:Winamax",
	}, order)

	// sports + 2 events + 3 odds; WTA and soccer are never queried.
	assert.Equal(t, int32(6), atomic.LoadInt32(&api.requests))
}

func TestTennisOddsAPIError(t *testing.T) {
	api := &fakeAPI{fail: map[string]int{"/v4/sports/tennis_atp_dubai/events/e3/odds": http.StatusTooManyRequests}}
	c := newTestClient(t, api)

	_, err := c.TennisOdds(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "quota exceeded")
	assert.Contains(t, apiErr.Error(), "429")
}

func TestMissingToken(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := NewClient(srv.URL, "").Sports(context.Background())
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Zero(t, atomic.LoadInt32(&api.requests))
}

func TestUnauthorized(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := NewClient(srv.URL, "wrong").Sports(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestNotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "token").Sports(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not JSON")
}

func TestQuoteRow(t *testing.T) {
	q := Quote{Tournament: "ATP Doha", CommenceTime: "2025-03-05T14:30:00Z", Player1: "A", Odds1: 1.5, Player2: "B", Odds2: 2.5, Bookmaker: "Unibet"}
	assert.Equal(t, store.Row{
		"tournament":    "ATP Doha",
		"commence_time": "2025-03-05T14:30:00Z",
		"player_1":      "A",
		"odds_1":        1.5,
		"player_2":      "B",
		"odds_2":        2.5,
		"bookmaker":     "Unibet",
	}, q.Row())
}
