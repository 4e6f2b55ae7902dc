package stor

import (
	"github.com/hashicorp/go-uuid"
	"github.com/snapify/snapify/pkg/model"
	"gorm.io/gorm"
)

type GormMediaAssetStor struct {
	db *gorm.DB
}

func NewGormMediaAssetStor(db *gorm.DB) *GormMediaAssetStor {
	return &GormMediaAssetStor{db: db}
}

func (s *GormMediaAssetStor) CreateMediaAsset(asset *model.MediaAsset) (*model.MediaAsset, error) {
	var err error

	if asset.ID == "" {
		if asset.ID, err = uuid.GenerateUUID(); err != nil {
			return nil, err
		}
	}

	err = WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Create(asset).Error
	})

	return asset, err
}

func (s *GormMediaAssetStor) GetMediaAssetByID(id string) (*model.MediaAsset, error) {
	var asset model.MediaAsset
	if err := s.db.Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, err
	}

	return &asset, nil
}

func (s *GormMediaAssetStor) ListMediaAssetsByCollection(collectionID string) ([]model.MediaAsset, error) {
	var assets []model.MediaAsset
	err := s.db.Where("collection_id = ?", collectionID).
		Order("created_at desc").
		Find(&assets).Error

	return assets, err
}

func (s *GormMediaAssetStor) MarkMediaAssetProcessed(id string, storageKey, previewKey, thumbKey string) error {
	return WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Model(&model.MediaAsset{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"processing":  false,
				"failed":      false,
				"storage_key": storageKey,
				"preview_key": previewKey,
				"thumb_key":   thumbKey,
			}).Error
	})
}

func (s *GormMediaAssetStor) MarkMediaAssetFailed(id string, reason string) error {
	return WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Model(&model.MediaAsset{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"processing":  false,
				"failed":      true,
				"status_note": reason,
			}).Error
	})
}

func (s *GormMediaAssetStor) IncrementLikes(id string) error {
	return WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Model(&model.MediaAsset{}).
			Where("id = ?", id).
			Update("likes", gorm.Expr("likes + 1")).Error
	})
}

func (s *GormMediaAssetStor) DeleteMediaAsset(id string) error {
	return WithTxRetry(s.db, func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&model.MediaAsset{}).Error
	})
}
