// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package odds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/staranto/tennisbet/internal/store"
)

const (
	// DefaultBaseURL is the-odds-api v4 host.
	DefaultBaseURL = "https://api.the-odds-api.com"

	tennisPrefix      = "tennis_atp"
	defaultRegion     = "fr"
	defaultFanout     = 4
	maxErrorBodyBytes = 2048
)

// ErrMissingToken is returned before any request when no API key is set.
var ErrMissingToken = errors.New("ODDS_API_TOKEN is not set")

// APIError is a non-2xx answer from the API.
type APIError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("odds api %s: %d %s: %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Sport is one entry of /v4/sports.
type Sport struct {
	Key    string
	Group  string
	Title  string
	Active bool
}

// Event is one entry of /v4/sports/{sport}/events.
type Event struct {
	ID           string
	SportKey     string
	SportTitle   string
	CommenceTime string
	HomeTeam     string
	AwayTeam     string
}

// Quote is one bookmaker's head-to-head prices for a match.
type Quote struct {
	Tournament   string
	CommenceTime string
	Player1      string
	Odds1        float64
	Player2      string
	Odds2        float64
	Bookmaker    string
}

// Row is the cached form of a Quote.
func (q Quote) Row() store.Row {
	return store.Row{
		"tournament":    q.Tournament,
		"commence_time": q.CommenceTime,
		"player_1":      q.Player1,
		"odds_1":        q.Odds1,
		"player_2":      q.Player2,
		"odds_2":        q.Odds2,
		"bookmaker":     q.Bookmaker,
	}
}

// Client talks to the-odds-api.
type Client struct {
	baseURL string
	token   string
	regions []string
	fanout  int
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled cleanhttp client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRegions sets the bookmaker regions, e.g. "fr" or "uk".
func WithRegions(regions ...string) Option {
	return func(c *Client) {
		if len(regions) > 0 {
			c.regions = regions
		}
	}
}

// WithFanout bounds the number of concurrent requests TennisOdds makes.
func WithFanout(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.fanout = n
		}
	}
}

// NewClient returns a Client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		regions: []string{defaultRegion},
		fanout:  defaultFanout,
		http:    cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get issues one GET and returns the parsed JSON document.
func (c *Client) get(ctx context.Context, path string, params url.Values) (gjson.Result, error) {
	if c.token == "" {
		return gjson.Result{}, ErrMissingToken
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("apiKey", c.token)

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		log.WithField("status", resp.StatusCode).Error(string(body))
		return gjson.Result{}, &APIError{URL: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("odds api %s: response is not JSON", endpoint)
	}

	log.WithFields(log.Fields{
		"path":      path,
		"remaining": resp.Header.Get("x-requests-remaining"),
	}).Debug("odds api")

	return gjson.ParseBytes(body), nil
}

// Sports lists the sports the API knows about.
func (c *Client) Sports(ctx context.Context) ([]Sport, error) {
	doc, err := c.get(ctx, "/v4/sports/", nil)
	if err != nil {
		return nil, err
	}

	var sports []Sport
	doc.ForEach(func(_, s gjson.Result) bool {
		sports = append(sports, Sport{
			Key:    s.Get("key").String(),
			Group:  s.Get("group").String(),
			Title:  s.Get("title").String(),
			Active: s.Get("active").Bool(),
		})
		return true
	})
	return sports, nil
}

// Events lists upcoming events for sport.
func (c *Client) Events(ctx context.Context, sport string) ([]Event, error) {
	doc, err := c.get(ctx, "/v4/sports/"+url.PathEscape(sport)+"/events/", nil)
	if err != nil {
		return nil, err
	}

	var events []Event
	doc.ForEach(func(_, e gjson.Result) bool {
		events = append(events, Event{
			ID:           e.Get("id").String(),
			SportKey:     e.Get("sport_key").String(),
			SportTitle:   e.Get("sport_title").String(),
			CommenceTime: e.Get("commence_time").String(),
			HomeTeam:     e.Get("home_team").String(),
			AwayTeam:     e.Get("away_team").String(),
		})
		return true
	})
	return events, nil
}

// EventOdds returns one Quote per bookmaker offering h2h decimal odds on the
// event. Bookmakers without a two-way h2h market are skipped.
func (c *Client) EventOdds(ctx context.Context, sport, eventID string) ([]Quote, error) {
	params := url.Values{}
	params.Set("regions", strings.Join(c.regions, ","))
	params.Set("markets", "h2h")
	params.Set("oddsFormat", "decimal")
	params.Set("dateFormat", "iso")

	path := "/v4/sports/" + url.PathEscape(sport) + "/events/" + url.PathEscape(eventID) + "/odds"
	doc, err := c.get(ctx, path, params)
	if err != nil {
		return nil, err
	}

	tournament := doc.Get("sport_title").String()
	commence := doc.Get("commence_time").String()

	var quotes []Quote
	doc.Get("bookmakers").ForEach(func(_, bk gjson.Result) bool {
		outcomes := bk.Get(`markets.#(key=="h2h").outcomes`).Array()
		if len(outcomes) < 2 {
			log.WithField("bookmaker", bk.Get("key").String()).Debugf("no h2h market for %s", eventID)
			return true
		}
		quotes = append(quotes, Quote{
			Tournament:   tournament,
			CommenceTime: commence,
			Player1:      outcomes[0].Get("name").String(),
			Odds1:        outcomes[0].Get("price").Float(),
			Player2:      outcomes[1].Get("name").String(),
			Odds2:        outcomes[1].Get("price").Float(),
			Bookmaker:    bk.Get("title").String(),
		})
		return true
	})
	return quotes, nil
}

// TennisOdds collects quotes for every event of every ATP tennis sport. The
// result is ordered by sport, then event, then bookmaker as the API lists
// them, regardless of the order requests complete in.
func (c *Client) TennisOdds(ctx context.Context) ([]Quote, error) {
	sports, err := c.Sports(ctx)
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, s := range sports {
		if strings.HasPrefix(s.Key, tennisPrefix) {
			keys = append(keys, s.Key)
		}
	}
	if len(keys) == 0 {
		log.Info("no ATP tennis sports listed")
		return nil, nil
	}

	eventsBySport := make([][]Event, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, key := range keys {
		g.Go(func() error {
			events, err := c.Events(gctx, key)
			if err != nil {
				return err
			}
			eventsBySport[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type job struct {
		sport string
		event Event
	}
	var jobs []job
	for i, events := range eventsBySport {
		for _, e := range events {
			jobs = append(jobs, job{sport: keys[i], event: e})
		}
	}

	quotesByJob := make([][]Quote, len(jobs))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(c.fanout)
	for i, j := range jobs {
		g.Go(func() error {
			quotes, err := c.EventOdds(gctx, j.sport, j.event.ID)
			if err != nil {
				return err
			}
			quotesByJob[i] = quotes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Quote
	for _, quotes := range quotesByJob {
		all = append(all, quotes...)
	}

	log.Infof("found %d tennis matches and %d odds", len(jobs), len(all))
	return all, nil
}
