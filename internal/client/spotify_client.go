package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemforge/api/internal/config"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// ErrTrackNotFound is returned when a search query matches nothing.
var ErrTrackNotFound = fmt.Errorf("no matching track found")

// TrackLookup defines the metadata-provider operations the service needs.
type TrackLookup interface {
	SearchTrack(ctx context.Context, query string) (*Track, error)
	RandomPlaylistTrack(ctx context.Context, playlistRef string) (*Track, error)
}

// Track is the provider's view of one song.
type Track struct {
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
	} `json:"album"`
	DurationMS int `json:"duration_ms"`
	Popularity int `json:"popularity"`
}

// PrimaryArtist returns the first listed artist, or a placeholder.
func (t *Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return "Unknown Artist"
	}
	return t.Artists[0].Name
}

// ReleaseYear parses the year out of the album release date.
func (t *Track) ReleaseYear() int {
	if len(t.Album.ReleaseDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(t.Album.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// SpotifyClient implements TrackLookup using the client-credentials flow.
// Playlist contents are cached in redis with a TTL so repeated submits
// against the same playlist don't refetch every page.
type SpotifyClient struct {
	httpClient *http.Client
	redis      *redis.Client
	cacheTTL   time.Duration
}

// NewSpotifyClient creates a new metadata-provider client.
func NewSpotifyClient(cfg *config.SpotifyConfig, redisClient *redis.Client) *SpotifyClient {
	ccfg := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyTokenURL,
	}
	return &SpotifyClient{
		httpClient: ccfg.Client(context.Background()),
		redis:      redisClient,
		cacheTTL:   time.Duration(cfg.PlaylistCacheTTL) * time.Minute,
	}
}

// SearchTrack returns the best-match track for a free-text query.
func (c *SpotifyClient) SearchTrack(ctx context.Context, query string) (*Track, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&type=track&limit=1", spotifyBaseURL, url.QueryEscape(query))

	var result struct {
		Tracks struct {
			Items []Track `json:"items"`
		} `json:"tracks"`
	}
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if len(result.Tracks.Items) == 0 {
		return nil, ErrTrackNotFound
	}
	return &result.Tracks.Items[0], nil
}

// RandomPlaylistTrack picks a random track from a playlist URL or ID.
func (c *SpotifyClient) RandomPlaylistTrack(ctx context.Context, playlistRef string) (*Track, error) {
	playlistID := extractPlaylistID(playlistRef)

	tracks, err := c.playlistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks found in playlist %s", playlistID)
	}
	return &tracks[rand.Intn(len(tracks))], nil
}

// playlistTracks fetches all tracks of a playlist, serving from the redis
// cache when a fresh copy exists.
func (c *SpotifyClient) playlistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	cacheKey := "playlist:" + playlistID

	if c.redis != nil {
		if data, err := c.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var tracks []Track
			if err := json.Unmarshal(data, &tracks); err == nil {
				return tracks, nil
			}
		}
	}

	var tracks []Track
	endpoint := fmt.Sprintf("%s/playlists/%s/tracks?limit=100", spotifyBaseURL, playlistID)
	for endpoint != "" {
		var page struct {
			Items []struct {
				Track *Track `json:"track"`
			} `json:"items"`
			Next *string `json:"next"`
		}
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			// Local files come back with a nil track object
			if item.Track != nil {
				tracks = append(tracks, *item.Track)
			}
		}
		endpoint = ""
		if page.Next != nil {
			endpoint = *page.Next
		}
	}
	log.Printf("Fetched %d tracks from playlist %s", len(tracks), playlistID)

	if c.redis != nil {
		if data, err := json.Marshal(tracks); err == nil {
			if err := c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err(); err != nil {
				log.Printf("Failed to cache playlist %s: %v", playlistID, err)
			}
		}
	}
	return tracks, nil
}

func (c *SpotifyClient) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("metadata provider error: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// extractPlaylistID accepts either a bare playlist ID or a share URL.
func extractPlaylistID(ref string) string {
	if !strings.Contains(ref, "spotify.com/playlist/") {
		return ref
	}
	parts := strings.Split(ref, "/")
	last := parts[len(parts)-1]
	if i := strings.Index(last, "?"); i >= 0 {
		last = last[:i]
	}
	return last
}
