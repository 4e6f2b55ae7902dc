package stor

import (
	"github.com/snapify/snapify/pkg/model"
	"gorm.io/gorm"
)

type MediaAssetStor interface {
	CreateMediaAsset(asset *model.MediaAsset) (*model.MediaAsset, error)
	GetMediaAssetByID(id string) (*model.MediaAsset, error)
	ListMediaAssetsByCollection(collectionID string) ([]model.MediaAsset, error)
	MarkMediaAssetProcessed(id string, storageKey, previewKey, thumbKey string) error
	MarkMediaAssetFailed(id string, reason string) error
	IncrementLikes(id string) error
	DeleteMediaAsset(id string) error
}

type SessionStor interface {
	CreateSession(session *model.UploadSession) (*model.UploadSession, error)
	GetSessionByID(id string) (*model.UploadSession, error)
	SaveSession(session *model.UploadSession) error
	DeleteSession(id string) error
	ListSessions() []*model.UploadSession
}

type Stors struct {
	MediaAssetStor MediaAssetStor
	SessionStor    SessionStor
}

func NewStors(db *gorm.DB) *Stors {
	return &Stors{
		MediaAssetStor: NewGormMediaAssetStor(db),
		SessionStor:    NewInMemorySessionStor(),
	}
}
