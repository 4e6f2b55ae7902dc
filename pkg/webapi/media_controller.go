package webapi

import (
	"context"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/snapify/snapify/pkg/model"
	"github.com/snapify/snapify/pkg/objstore"
	"github.com/snapify/snapify/pkg/stor"
)

const signedURLTTL = time.Hour

// MediaController serves media asset metadata with time-limited URLs for the
// stored objects. Storage keys never leave the server; clients only ever see
// signed URLs.
type MediaController struct {
	assetStor stor.MediaAssetStor
	store     objstore.Store
}

func NewMediaController(assetStor stor.MediaAssetStor, store objstore.Store) *MediaController {
	return &MediaController{assetStor: assetStor, store: store}
}

// mediaAssetResponse is the externally visible shape of a MediaAsset.
type mediaAssetResponse struct {
	ID           string          `json:"id"`
	CollectionID string          `json:"collection_id"`
	Kind         model.MediaKind `json:"kind"`
	URL          string          `json:"url,omitempty"`
	PreviewURL   string          `json:"preview_url,omitempty"`
	ThumbURL     string          `json:"thumb_url,omitempty"`
	Processing   bool            `json:"processing"`
	Failed       bool            `json:"failed"`
	StatusNote   string          `json:"status_note,omitempty"`
	UploaderID   string          `json:"uploader_id"`
	UploaderName string          `json:"uploader_name"`
	Caption      string          `json:"caption"`
	Likes        int             `json:"likes"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (c *MediaController) GetMediaAsset(ctx echo.Context) error {
	asset, err := c.assetStor.GetMediaAssetByID(ctx.Param("id"))
	if err != nil {
		return errorResponse(ctx, http.StatusNotFound, "No such media asset")
	}

	return ctx.JSON(http.StatusOK, c.toResponse(ctx, asset))
}

func (c *MediaController) ListCollectionMedia(ctx echo.Context) error {
	assets, err := c.assetStor.ListMediaAssetsByCollection(ctx.Param("collection_id"))
	if err != nil {
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to list media")
	}

	resp := make([]mediaAssetResponse, 0, len(assets))
	for i := range assets {
		resp = append(resp, c.toResponse(ctx, &assets[i]))
	}

	return ctx.JSON(http.StatusOK, resp)
}

func (c *MediaController) LikeMediaAsset(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.assetStor.IncrementLikes(id); err != nil {
		return errorResponse(ctx, http.StatusNotFound, "No such media asset")
	}

	asset, err := c.assetStor.GetMediaAssetByID(id)
	if err != nil {
		return errorResponse(ctx, http.StatusNotFound, "No such media asset")
	}

	return ctx.JSON(http.StatusOK, c.toResponse(ctx, asset))
}

// DeleteMediaAsset removes the stored objects best-effort, then the record.
// A failed object delete is logged and does not block the record delete; the
// cleanup sweeper has no reach into the bucket, so orphans are acceptable.
func (c *MediaController) DeleteMediaAsset(ctx echo.Context) error {
	id := ctx.Param("id")

	asset, err := c.assetStor.GetMediaAssetByID(id)
	if err != nil {
		return errorResponse(ctx, http.StatusNotFound, "No such media asset")
	}

	reqCtx := ctx.Request().Context()
	for _, key := range []string{asset.StorageKey, asset.PreviewKey, asset.ThumbKey} {
		if key == "" {
			continue
		}
		if err := c.store.Delete(reqCtx, key); err != nil {
			log.Errorf("deleting object %s: %s", key, err)
		}
	}

	if err := c.assetStor.DeleteMediaAsset(id); err != nil {
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to delete media asset")
	}

	return ctx.NoContent(http.StatusOK)
}

func (c *MediaController) toResponse(ctx echo.Context, asset *model.MediaAsset) mediaAssetResponse {
	resp := mediaAssetResponse{
		ID:           asset.ID,
		CollectionID: asset.CollectionID,
		Kind:         asset.Kind,
		Processing:   asset.Processing,
		Failed:       asset.Failed,
		StatusNote:   asset.StatusNote,
		UploaderID:   asset.UploaderID,
		UploaderName: asset.UploaderName,
		Caption:      asset.Caption,
		Likes:        asset.Likes,
		CreatedAt:    asset.CreatedAt,
	}

	reqCtx := ctx.Request().Context()
	resp.URL = c.signedURL(reqCtx, asset.StorageKey)
	resp.PreviewURL = c.signedURL(reqCtx, asset.PreviewKey)
	resp.ThumbURL = c.signedURL(reqCtx, asset.ThumbKey)

	return resp
}

func (c *MediaController) signedURL(ctx context.Context, key string) string {
	u, err := c.store.SignedGet(ctx, key, signedURLTTL)
	if err != nil {
		return ""
	}
	return u
}
