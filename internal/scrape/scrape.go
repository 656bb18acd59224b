// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/hashicorp/go-cleanhttp"
	"golang.org/x/net/html"

	"github.com/staranto/tennisbet/internal/store"
)

const (
	DefaultATPURL       = "https://www.atptour.com"
	DefaultLivescoreURL = "https://www.livescore.com"

	rankingsPath = "/en/rankings/singles?rankRange=0-300"
	tennisPath   = "/en/tennis/"
	dateLayout   = "2006-01-02"

	// Pages refuse obvious bots.
	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ErrNoPlayers means the rankings page carried no player links, usually
// because it now renders them client-side.
var ErrNoPlayers = errors.New("no player links found")

// StatusError is a non-2xx page fetch.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Player is a ranked player's overview page.
type Player struct {
	Name string
	URL  string
}

func (p Player) Row() store.Row {
	return store.Row{"name": p.Name, "url": p.URL}
}

// Match is one ATP match page listed for a day.
type Match struct {
	Date       string
	Tournament string
	Players    string
	URL        string
}

func (m Match) Row() store.Row {
	return store.Row{
		"date":       m.Date,
		"tournament": m.Tournament,
		"players":    m.Players,
		"url":        m.URL,
	}
}

// Scraper reads server-rendered pages. Anything a page only renders through
// JavaScript is invisible to it.
type Scraper struct {
	atpURL       string
	livescoreURL string
	http         *http.Client
	now          func() time.Time
}

type Option func(*Scraper)

func WithATPURL(u string) Option {
	return func(s *Scraper) {
		if u != "" {
			s.atpURL = strings.TrimRight(u, "/")
		}
	}
}

func WithLivescoreURL(u string) Option {
	return func(s *Scraper) {
		if u != "" {
			s.livescoreURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Scraper) { s.http = hc }
}

// WithClock replaces time.Now when deciding whether a date is in the past.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

func New(opts ...Option) *Scraper {
	s := &Scraper{
		atpURL:       DefaultATPURL,
		livescoreURL: DefaultLivescoreURL,
		http:         cleanhttp.DefaultPooledClient(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlayerURLs returns the overview page of every player in the top 300 of the
// singles rankings, deduplicated in page order.
func (s *Scraper) PlayerURLs(ctx context.Context) ([]Player, error) {
	page := s.atpURL + rankingsPath
	doc, base, err := s.fetch(ctx, page)
	if err != nil {
		return nil, err
	}

	var players []Player
	for _, href := range links(doc, base, func(h string) bool {
		return strings.Contains(h, "/en/players/") && strings.Contains(h, "/overview")
	}) {
		players = append(players, Player{Name: playerName(href), URL: href})
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("%s: %w", page, ErrNoPlayers)
	}

	log.Infof("found %d player links", len(players))
	return players, nil
}

// MatchURLs returns the ATP matches listed for date. Past days use the dated
// page; today and later use the live page.
func (s *Scraper) MatchURLs(ctx context.Context, date time.Time) ([]Match, error) {
	page := s.livescoreURL + tennisPath
	day := date.Format(dateLayout)
	if day < s.now().Format(dateLayout) {
		page += day + "/"
	}
	log.Debugf("fetching matches from %s", page)

	doc, base, err := s.fetch(ctx, page)
	if err != nil {
		return nil, err
	}

	root := doc
	if c := findContent(doc); c != nil {
		root = c
	}

	var matches []Match
	for _, href := range links(root, base, func(h string) bool {
		return strings.Contains(h, "/en/tennis/atp-") && strings.Contains(h, "-vs-")
	}) {
		tournament, players := matchParts(href)
		matches = append(matches, Match{Date: day, Tournament: tournament, Players: players, URL: href})
	}

	log.Infof("found %d match links for %s", len(matches), day)
	return matches, nil
}

func (s *Scraper) fetch(ctx context.Context, page string) (*html.Node, *url.URL, error) {
	base, err := url.Parse(page)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid page url %q: %w", page, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &StatusError{URL: page, StatusCode: resp.StatusCode}
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", page, err)
	}
	return doc, base, nil
}

// links walks n and returns the absolute, fragment-free href of every anchor
// keep accepts, first occurrence only.
func links(n *html.Node, base *url.URL, keep func(string) bool) []string {
	seen := map[string]bool{}
	var out []string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := attr(n, "href"); ok {
				if u, err := base.Parse(strings.TrimSpace(href)); err == nil {
					u.Fragment = ""
					abs := u.String()
					if keep(abs) && !seen[abs] {
						seen[abs] = true
						out = append(out, abs)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// findContent returns the score container (id "content" with a
// header-scores class) if the page has one.
func findContent(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		id, _ := attr(n, "id")
		class, _ := attr(n, "class")
		if id == "content" && strings.Contains(class, "header-scores") {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findContent(c); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// playerName turns .../players/carlos-alcaraz/a0e2/overview into
// "Carlos Alcaraz".
func playerName(href string) string {
	_, rest, ok := strings.Cut(href, "/en/players/")
	if !ok {
		return ""
	}
	slug, _, _ := strings.Cut(rest, "/")
	return titleSlug(slug)
}

// matchParts splits .../en/tennis/atp-500/qatar-open-doha/a-vs-b/1741553/
// into the tournament and the pairing.
func matchParts(href string) (string, string) {
	_, rest, ok := strings.Cut(href, "/en/tennis/")
	if !ok {
		return "", ""
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	var tournament, players string
	for i, p := range parts {
		if strings.Contains(p, "-vs-") {
			players = strings.ReplaceAll(titleSlug(p), " Vs ", " vs ")
			if i > 0 {
				tournament = titleSlug(parts[i-1])
			}
			break
		}
	}
	return tournament, players
}

func titleSlug(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
