/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/snapify/snapify/pkg/cleaner"
	"github.com/snapify/snapify/pkg/config"
	"github.com/snapify/snapify/pkg/jobs"
	"github.com/snapify/snapify/pkg/notify"
	"github.com/snapify/snapify/pkg/objstore"
	"github.com/snapify/snapify/pkg/stor"
	"github.com/snapify/snapify/pkg/transform"
	"github.com/snapify/snapify/pkg/upload"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "snapifyd",
	Short: "Run the snapify media ingestion server",
	Long: `snapifyd accepts chunked media uploads for shared event galleries,
processes them in the background (image resizing, video transcoding with
ffmpeg, thumbnail generation), stores the results in S3-compatible object
storage, and streams per-collection progress events over websockets.`,
	Run: func(cmd *cobra.Command, args []string) {
		config.MustLoadFromDotenv()

		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		e.Use(middleware.Recover())

		tmpDir := config.GetKeyWithDefault("SNAPIFY_TMP_DIR", filepath.Join(os.TempDir(), "snapify"))
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			log.Fatalf("Unable to create temp dir %s: %s", tmpDir, err)
		}
		log.Infof("Temp dir: %s", tmpDir)

		db := stor.MustConnectToDB()
		stors := stor.NewStors(db)

		store, err := objstore.NewMinioStore(
			config.MustGetKey("MINIO_ENDPOINT"),
			config.MustGetKey("MINIO_ACCESS_KEY"),
			config.MustGetKey("MINIO_SECRET_KEY"),
			config.GetKeyWithDefault("MINIO_USE_SSL", "false") == "true",
			config.GetKeyWithDefault("MINIO_BUCKET", "snapify-media"),
		)
		if err != nil {
			log.Fatalf("Unable to connect to object storage: %s", err)
		}

		hub := notify.NewHub()
		go hub.Run()

		transcoder := transform.NewFFmpegTranscoder(
			config.GetKeyWithDefault("FFMPEG_PATH", "ffmpeg"),
			config.GetDurationKeyWithDefault("SNAPIFY_TRANSCODE_TIMEOUT", transform.DefaultTranscodeTimeout),
		)

		queue := jobs.NewQueue(store, stors.MediaAssetStor, transcoder, hub, jobs.QueueOpts{
			Workers:    config.GetIntKeyWithDefault("SNAPIFY_WORKER_COUNT", jobs.DefaultWorkerCount),
			MaxRetries: config.GetIntKeyWithDefault("SNAPIFY_MAX_RETRIES", jobs.DefaultMaxRetries),
		})
		queue.Start(context.Background())

		uploads := upload.NewManager(tmpDir, stors.SessionStor, hub)

		sweeper := cleaner.NewSweeper(tmpDir,
			config.GetDurationKeyWithDefault("SNAPIFY_SWEEP_AGE", cleaner.DefaultMaxAge), uploads)
		sweeper.Start()

		setupRoutes(e, RouteOpts{
			uploads:   uploads,
			queue:     queue,
			assetStor: stors.MediaAssetStor,
			store:     store,
			hub:       hub,
		})

		if err := e.Start(":" + config.GetKeyWithDefault("SNAPIFY_PORT", "1560")); err != nil {
			log.Fatalf("Unable to start server: %v", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
