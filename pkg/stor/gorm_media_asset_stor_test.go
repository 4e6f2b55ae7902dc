package stor

import (
	"testing"

	"github.com/snapify/snapify/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(SqliteInMemoryDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection avoids sqlite table locks across goroutines.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, RunMigrations(db))

	t.Cleanup(func() {
		db.Exec("DELETE FROM media_assets")
		_ = sqlDB.Close()
	})

	return db
}

func TestGormMediaAssetStorLifecycle(t *testing.T) {
	s := NewGormMediaAssetStor(newTestDB(t))

	created, err := s.CreateMediaAsset(&model.MediaAsset{
		CollectionID: "c1",
		Kind:         model.MediaKindImage,
		Processing:   true,
		UploaderName: "Pat",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	require.NoError(t, s.MarkMediaAssetProcessed(created.ID,
		"collections/c1/"+created.ID+".jpg",
		"collections/c1/preview_"+created.ID+".jpg",
		"collections/c1/preview_"+created.ID+".thumb.jpg"))

	got, err := s.GetMediaAssetByID(created.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing)
	assert.False(t, got.Failed)
	assert.Equal(t, "collections/c1/"+created.ID+".jpg", got.StorageKey)
	assert.Equal(t, "collections/c1/preview_"+created.ID+".thumb.jpg", got.ThumbKey)

	require.NoError(t, s.IncrementLikes(created.ID))
	require.NoError(t, s.IncrementLikes(created.ID))

	got, err = s.GetMediaAssetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Likes)

	require.NoError(t, s.DeleteMediaAsset(created.ID))
	_, err = s.GetMediaAssetByID(created.ID)
	assert.Error(t, err)
}

func TestGormMediaAssetStorMarkFailed(t *testing.T) {
	s := NewGormMediaAssetStor(newTestDB(t))

	created, err := s.CreateMediaAsset(&model.MediaAsset{
		CollectionID: "c1",
		Kind:         model.MediaKindVideo,
		Processing:   true,
	})
	require.NoError(t, err)

	require.NoError(t, s.MarkMediaAssetFailed(created.ID, "transcode failed"))

	got, err := s.GetMediaAssetByID(created.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing)
	assert.True(t, got.Failed)
	assert.Equal(t, "transcode failed", got.StatusNote)
}

func TestGormMediaAssetStorListByCollection(t *testing.T) {
	s := NewGormMediaAssetStor(newTestDB(t))

	for _, collectionID := range []string{"c1", "c1", "c2"} {
		_, err := s.CreateMediaAsset(&model.MediaAsset{CollectionID: collectionID})
		require.NoError(t, err)
	}

	assets, err := s.ListMediaAssetsByCollection("c1")
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	assets, err = s.ListMediaAssetsByCollection("empty")
	require.NoError(t, err)
	assert.Empty(t, assets)
}
