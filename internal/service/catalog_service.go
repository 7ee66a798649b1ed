package service

import (
	"context"

	"github.com/stemforge/api/internal/client"
	"github.com/stemforge/api/internal/model"
)

// CatalogService exposes metadata-provider lookups to the API layer.
type CatalogService struct {
	lookup client.TrackLookup
}

func NewCatalogService(lookup client.TrackLookup) *CatalogService {
	return &CatalogService{lookup: lookup}
}

// Search returns the best-match song metadata for a free-text query.
func (s *CatalogService) Search(ctx context.Context, query string) (*model.SongMetadata, error) {
	track, err := s.lookup.SearchTrack(ctx, query)
	if err != nil {
		return nil, err
	}

	artists := make([]string, 0, len(track.Artists))
	for _, a := range track.Artists {
		artists = append(artists, a.Name)
	}
	if len(artists) == 0 {
		artists = []string{"Unknown Artist"}
	}

	return &model.SongMetadata{
		Title:      track.Name,
		Artists:    artists,
		Album:      track.Album.Name,
		Duration:   track.DurationMS / 1000,
		Year:       track.ReleaseYear(),
		Popularity: int64(track.Popularity),
	}, nil
}
