package cmd

import (
	"github.com/labstack/echo/v4"
	"github.com/snapify/snapify/pkg/jobs"
	"github.com/snapify/snapify/pkg/notify"
	"github.com/snapify/snapify/pkg/objstore"
	"github.com/snapify/snapify/pkg/stor"
	"github.com/snapify/snapify/pkg/upload"
	"github.com/snapify/snapify/pkg/webapi"
)

type RouteOpts struct {
	uploads   *upload.Manager
	queue     *jobs.Queue
	assetStor stor.MediaAssetStor
	store     objstore.Store
	hub       *notify.Hub
}

func setupRoutes(e *echo.Echo, opts RouteOpts) {
	g := e.Group("/api")

	uploadController := webapi.NewUploadController(opts.uploads, opts.queue)
	g.POST("/uploads/start", uploadController.StartUpload)
	g.POST("/uploads/chunk", uploadController.SendChunk)
	g.POST("/uploads/complete", uploadController.CompleteUpload)
	g.POST("/uploads/cancel", uploadController.CancelUpload)
	g.GET("/uploads/status", uploadController.GetUploadStatus)

	mediaController := webapi.NewMediaController(opts.assetStor, opts.store)
	g.GET("/media/:id", mediaController.GetMediaAsset)
	g.POST("/media/:id/like", mediaController.LikeMediaAsset)
	g.DELETE("/media/:id", mediaController.DeleteMediaAsset)
	g.GET("/collections/:collection_id/media", mediaController.ListCollectionMedia)

	e.GET("/ws/:collection_id", func(ctx echo.Context) error {
		opts.hub.ServeWS(ctx.Response(), ctx.Request(), ctx.Param("collection_id"))
		return nil
	})
}
