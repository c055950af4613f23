// Package music searches public catalogs for a track to attach to a page.
// Spotify is queried first when client credentials are configured; the
// iTunes search API is the keyless fallback.
package music

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Track types reported to the browser.
const (
	TypeSpotify = "spotify" // URL is an embeddable player
	TypeMP3     = "mp3"     // URL is a directly playable preview
)

// SpotifyEmbedBase prefixes Spotify track ids to form a player URL.
const SpotifyEmbedBase = "https://open.spotify.com/embed/track/"

// Track is one search hit.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"album_art"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

// Config holds catalog endpoints and credentials. Zero values select the
// public endpoints.
type Config struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyTokenURL     string // default "https://accounts.spotify.com/api/token"
	SpotifyAPIURL       string // default "https://api.spotify.com/v1"
	ITunesURL           string // default "https://itunes.apple.com/search"
	Limit               int    // default 10
	Timeout             time.Duration
	HTTPClient          *http.Client
}

func (c *Config) setDefaults() {
	if c.SpotifyTokenURL == "" {
		c.SpotifyTokenURL = "https://accounts.spotify.com/api/token"
	}
	if c.SpotifyAPIURL == "" {
		c.SpotifyAPIURL = "https://api.spotify.com/v1"
	}
	if c.ITunesURL == "" {
		c.ITunesURL = "https://itunes.apple.com/search"
	}
	if c.Limit <= 0 {
		c.Limit = 10
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
}

// ErrUnavailable is returned when every catalog failed.
var ErrUnavailable = errors.New("music: no catalog available")

// Client searches the configured catalogs. It is safe for concurrent use.
type Client struct {
	cfg    Config
	tokens *tokenCache // nil without Spotify credentials
	log    *zap.Logger
}

// New creates a Client. A nil logger discards output.
func New(cfg Config, log *zap.Logger) *Client {
	cfg.setDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{cfg: cfg, log: log}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenURL:     cfg.SpotifyTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		c.tokens = newTokenCache(func(ctx context.Context) (*oauth2.Token, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
			return cc.Token(context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient))
		})
	}
	return c
}

// SpotifyEnabled reports whether Spotify credentials are configured.
func (c *Client) SpotifyEnabled() bool { return c.tokens != nil }

// Search returns up to Config.Limit tracks for query. An empty query yields
// an empty list without any network call.
func (c *Client) Search(ctx context.Context, query string) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Track{}, nil
	}

	if c.tokens != nil {
		tracks, err := c.searchSpotify(ctx, query)
		if err == nil {
			return tracks, nil
		}
		c.log.Warn("spotify search failed, falling back to itunes", zap.Error(err))
	}

	tracks, err := c.searchITunes(ctx, query)
	if err != nil {
		c.log.Error("itunes search failed", zap.Error(err))
		return []Track{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return tracks, nil
}

type spotifyResponse struct {
	Tracks struct {
		Items []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
			Album struct {
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
			} `json:"album"`
		} `json:"items"`
	} `json:"tracks"`
}

func (c *Client) searchSpotify(ctx context.Context, query string) ([]Track, error) {
	token, err := c.tokens.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("spotify token: %w", err)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "track")
	q.Set("limit", strconv.Itoa(c.cfg.Limit))

	var body spotifyResponse
	status, err := c.getJSON(ctx, c.cfg.SpotifyAPIURL+"/search?"+q.Encode(), "Bearer "+token, &body)
	if status == http.StatusUnauthorized {
		c.tokens.invalidate()
	}
	if err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(body.Tracks.Items))
	for _, item := range body.Tracks.Items {
		t := Track{
			ID:    item.ID,
			Title: item.Name,
			URL:   SpotifyEmbedBase + item.ID,
			Type:  TypeSpotify,
		}
		if len(item.Artists) > 0 {
			t.Artist = item.Artists[0].Name
		}
		if len(item.Album.Images) > 0 {
			t.AlbumArt = item.Album.Images[0].URL
		}
		tracks = append(tracks, t)
	}
	return tracks, nil
}

type itunesResponse struct {
	Results []struct {
		TrackID       int64  `json:"trackId"`
		TrackName     string `json:"trackName"`
		ArtistName    string `json:"artistName"`
		ArtworkURL100 string `json:"artworkUrl100"`
		PreviewURL    string `json:"previewUrl"`
	} `json:"results"`
}

func (c *Client) searchITunes(ctx context.Context, query string) ([]Track, error) {
	q := url.Values{}
	q.Set("term", query)
	q.Set("media", "music")
	q.Set("entity", "song")
	q.Set("limit", strconv.Itoa(c.cfg.Limit))

	var body itunesResponse
	if _, err := c.getJSON(ctx, c.cfg.ITunesURL+"?"+q.Encode(), "", &body); err != nil {
		return nil, err
	}

	tracks := make([]Track, 0, len(body.Results))
	for _, r := range body.Results {
		tracks = append(tracks, Track{
			ID:       strconv.FormatInt(r.TrackID, 10),
			Title:    r.TrackName,
			Artist:   r.ArtistName,
			AlbumArt: r.ArtworkURL100,
			URL:      r.PreviewURL,
			Type:     TypeMP3,
		})
	}
	return tracks, nil
}

// getJSON performs one bounded GET and decodes a 200 response into v.
func (c *Client) getJSON(ctx context.Context, rawURL, auth string, v any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("GET %s: status %d", req.URL.Host, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s response: %w", req.URL.Host, err)
	}
	return resp.StatusCode, nil
}
