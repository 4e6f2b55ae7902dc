package model

import (
	"path/filepath"
	"strings"
	"time"
)

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindOther MediaKind = "other"
)

// MediaAsset is the durable record for one processed upload. It is created
// when assembly succeeds and updated exactly once by the job queue when
// processing finishes or terminally fails.
type MediaAsset struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	CollectionID string    `json:"collection_id"`
	Kind         MediaKind `json:"kind"`
	StorageKey   string    `json:"storage_key"`
	PreviewKey   string    `json:"preview_key"`
	ThumbKey     string    `json:"thumb_key"`
	Processing   bool      `json:"processing"`
	Failed       bool      `json:"failed"`
	StatusNote   string    `json:"status_note"`
	UploaderID   string    `json:"uploader_id"`
	UploaderName string    `json:"uploader_name"`
	Caption      string    `json:"caption"`
	Likes        int       `json:"likes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (MediaAsset) TableName() string {
	return "media_assets"
}

func (m MediaAsset) IsImage() bool {
	return m.Kind == MediaKindImage
}

func (m MediaAsset) IsVideo() bool {
	return m.Kind == MediaKindVideo
}

// PrimaryKeyFor builds the object storage key for the primary asset,
// eg collections/abc/123.jpg. ext carries its leading dot.
func PrimaryKeyFor(collectionID, assetID, ext string) string {
	return "collections/" + collectionID + "/" + assetID + strings.ToLower(ext)
}

// ExtOf returns the lowercased extension of a file name, dot included.
func ExtOf(fileName string) string {
	return strings.ToLower(filepath.Ext(fileName))
}

// PreviewKeyFor builds the object storage key for the thumbnail/preview,
// eg collections/abc/preview_123.jpg.
func PreviewKeyFor(collectionID, assetID, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return "collections/" + collectionID + "/preview_" + assetID + "." + ext
}
