package stor

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-uuid"
	"github.com/snapify/snapify/pkg/model"
)

// InMemoryMediaAssetStor is used by tests and single-process dev deployments.
type InMemoryMediaAssetStor struct {
	mu     sync.Mutex
	assets map[string]*model.MediaAsset
}

func NewInMemoryMediaAssetStor() *InMemoryMediaAssetStor {
	return &InMemoryMediaAssetStor{assets: make(map[string]*model.MediaAsset)}
}

func (s *InMemoryMediaAssetStor) CreateMediaAsset(asset *model.MediaAsset) (*model.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if asset.ID == "" {
		if asset.ID, err = uuid.GenerateUUID(); err != nil {
			return nil, err
		}
	}

	asset.CreatedAt = time.Now()
	cp := *asset
	s.assets[asset.ID] = &cp

	return asset, nil
}

func (s *InMemoryMediaAssetStor) GetMediaAssetByID(id string) (*model.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("no such media asset: %s", id)
	}

	cp := *asset
	return &cp, nil
}

func (s *InMemoryMediaAssetStor) ListMediaAssetsByCollection(collectionID string) ([]model.MediaAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var assets []model.MediaAsset
	for _, asset := range s.assets {
		if asset.CollectionID == collectionID {
			assets = append(assets, *asset)
		}
	}

	return assets, nil
}

func (s *InMemoryMediaAssetStor) MarkMediaAssetProcessed(id string, storageKey, previewKey, thumbKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("no such media asset: %s", id)
	}

	asset.Processing = false
	asset.Failed = false
	asset.StorageKey = storageKey
	asset.PreviewKey = previewKey
	asset.ThumbKey = thumbKey
	asset.UpdatedAt = time.Now()

	return nil
}

func (s *InMemoryMediaAssetStor) MarkMediaAssetFailed(id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("no such media asset: %s", id)
	}

	asset.Processing = false
	asset.Failed = true
	asset.StatusNote = reason
	asset.UpdatedAt = time.Now()

	return nil
}

func (s *InMemoryMediaAssetStor) IncrementLikes(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset, ok := s.assets[id]
	if !ok {
		return fmt.Errorf("no such media asset: %s", id)
	}

	asset.Likes++
	return nil
}

func (s *InMemoryMediaAssetStor) DeleteMediaAsset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.assets, id)
	return nil
}
