package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/snapify/snapify/pkg/jobs"
	"github.com/snapify/snapify/pkg/model"
	"github.com/snapify/snapify/pkg/notify"
	"github.com/snapify/snapify/pkg/objstore"
	"github.com/snapify/snapify/pkg/stor"
	"github.com/snapify/snapify/pkg/transform"
	"github.com/snapify/snapify/pkg/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEchoContext creates a test Echo context with the given request
func setupEchoContext(method, target string, body []byte, queryParams map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()

	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	q := req.URL.Query()
	for key, value := range queryParams {
		q.Add(key, value)
	}
	req.URL.RawQuery = q.Encode()

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	return c, rec
}

type controllerFixture struct {
	uploads    *upload.Manager
	queue      *jobs.Queue
	assetStor  stor.MediaAssetStor
	store      *objstore.InMemoryStore
	controller *UploadController
}

func newControllerFixture(t *testing.T) *controllerFixture {
	store := objstore.NewInMemoryStore()
	assetStor := stor.NewInMemoryMediaAssetStor()
	queue := jobs.NewQueue(store, assetStor, transform.NewFakeTranscoder(), notify.NullNotifier{}, jobs.QueueOpts{
		Workers:     1,
		BackoffBase: 1,
	})
	queue.Start(context.Background())

	uploads := upload.NewManager(t.TempDir(), stor.NewInMemorySessionStor(), nil)

	return &controllerFixture{
		uploads:    uploads,
		queue:      queue,
		assetStor:  assetStor,
		store:      store,
		controller: NewUploadController(uploads, queue),
	}
}

func (f *controllerFixture) startSession(t *testing.T, fileSize int64) string {
	body, _ := json.Marshal(map[string]interface{}{
		"file_name":     "party.bin",
		"file_size":     fileSize,
		"collection_id": "c1",
		"uploader_id":   "u1",
		"uploader_name": "Pat",
	})

	ctx, rec := setupEchoContext(http.MethodPost, "/api/uploads/start", body, nil)
	require.NoError(t, f.controller.StartUpload(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["session_id"])

	return resp["session_id"]
}

func (f *controllerFixture) sendChunk(t *testing.T, sessionID string, index, totalChunks int, data []byte) *httptest.ResponseRecorder {
	ctx, rec := setupEchoContext(http.MethodPost, "/api/uploads/chunk", data, map[string]string{
		"session_id":   sessionID,
		"chunk_index":  strconv.Itoa(index),
		"total_chunks": strconv.Itoa(totalChunks),
	})
	require.NoError(t, f.controller.SendChunk(ctx))
	return rec
}

func TestStartUploadRejectsBadRequests(t *testing.T) {
	f := newControllerFixture(t)

	body, _ := json.Marshal(map[string]interface{}{
		"file_name": "party.bin",
		"file_size": 0,
	})
	ctx, rec := setupEchoContext(http.MethodPost, "/api/uploads/start", body, nil)
	require.NoError(t, f.controller.StartUpload(ctx))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendChunkAcksProgress(t *testing.T) {
	f := newControllerFixture(t)
	sessionID := f.startSession(t, 10)

	rec := f.sendChunk(t, sessionID, 0, 2, []byte("12345"))
	assert.Equal(t, http.StatusOK, rec.Code)

	var ack upload.ChunkAck
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	assert.Equal(t, int64(5), ack.ReceivedBytes)
	assert.Equal(t, 50, ack.ProgressPercent)
	assert.Equal(t, model.SessionInitiated, ack.Status)
}

func TestSendChunkErrorMapping(t *testing.T) {
	f := newControllerFixture(t)

	t.Run("UnknownSessionIs404", func(t *testing.T) {
		rec := f.sendChunk(t, "no-such-session", 0, 1, []byte("x"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("OversizeChunkIs413", func(t *testing.T) {
		sessionID := f.startSession(t, 4)
		rec := f.sendChunk(t, sessionID, 0, 1, []byte("way too many bytes"))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("BadChunkIndexIs400", func(t *testing.T) {
		sessionID := f.startSession(t, 10)
		rec := f.sendChunk(t, sessionID, 5, 2, []byte("12345"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCompleteUploadHandsOffToQueue(t *testing.T) {
	f := newControllerFixture(t)
	sessionID := f.startSession(t, 10)

	f.sendChunk(t, sessionID, 0, 2, []byte("12345"))
	f.sendChunk(t, sessionID, 1, 2, []byte("67890"))

	ctx, rec := setupEchoContext(http.MethodPost, "/api/uploads/complete", nil, map[string]string{
		"session_id": sessionID,
	})
	require.NoError(t, f.controller.CompleteUpload(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var asset model.MediaAsset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &asset))
	assert.NotEmpty(t, asset.ID)
	assert.Equal(t, "c1", asset.CollectionID)
	assert.True(t, asset.Processing)

	f.queue.Wait()

	processed, err := f.assetStor.GetMediaAssetByID(asset.ID)
	require.NoError(t, err)
	assert.False(t, processed.Processing)
	assert.False(t, processed.Failed)
	assert.NotEmpty(t, processed.StorageKey)

	// The session is gone once handed off.
	ctx, rec = setupEchoContext(http.MethodGet, "/api/uploads/status", nil, map[string]string{
		"session_id": sessionID,
	})
	require.NoError(t, f.controller.GetUploadStatus(ctx))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteUploadIncompleteIs409(t *testing.T) {
	f := newControllerFixture(t)
	sessionID := f.startSession(t, 10)

	f.sendChunk(t, sessionID, 0, 2, []byte("12345"))

	ctx, rec := setupEchoContext(http.MethodPost, "/api/uploads/complete", nil, map[string]string{
		"session_id": sessionID,
	})
	require.NoError(t, f.controller.CompleteUpload(ctx))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetUploadStatus(t *testing.T) {
	f := newControllerFixture(t)
	sessionID := f.startSession(t, 10)
	f.sendChunk(t, sessionID, 0, 2, []byte("12345"))

	ctx, rec := setupEchoContext(http.MethodGet, "/api/uploads/status", nil, map[string]string{
		"session_id": sessionID,
	})
	require.NoError(t, f.controller.GetUploadStatus(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(5), resp["received_bytes"])
	assert.Equal(t, float64(1), resp["received_chunks"])
	assert.Equal(t, float64(50), resp["progress_percent"])
}

func TestCancelUpload(t *testing.T) {
	f := newControllerFixture(t)
	sessionID := f.startSession(t, 10)

	ctx, rec := setupEchoContext(http.MethodPost, "/api/uploads/cancel", nil, map[string]string{
		"session_id": sessionID,
	})
	require.NoError(t, f.controller.CancelUpload(ctx))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cancel removes the session entirely.
	rec = f.sendChunk(t, sessionID, 0, 1, []byte("x"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
