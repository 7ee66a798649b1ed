package service

import (
	"context"

	"github.com/stemforge/api/internal/client"
	"github.com/stemforge/api/internal/model"
)

// StorageService exposes read-only views of the artifact store.
type StorageService struct {
	store client.ObjectStore
}

func NewStorageService(store client.ObjectStore) *StorageService {
	return &StorageService{store: store}
}

// List returns the bucket's top-level folders, or the objects inside one
// folder when directory is non-empty.
func (s *StorageService) List(ctx context.Context, directory string) (*model.StorageListing, error) {
	if directory != "" {
		objects, err := s.store.ListObjects(ctx, directory)
		if err != nil {
			return nil, err
		}
		return &model.StorageListing{Directory: directory, Objects: objects}, nil
	}

	folders, err := s.store.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	return &model.StorageListing{Directories: folders}, nil
}
