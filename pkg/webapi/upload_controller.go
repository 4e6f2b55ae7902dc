package webapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/snapify/snapify/pkg/jobs"
	"github.com/snapify/snapify/pkg/upload"
)

// UploadController exposes the chunked upload lifecycle over HTTP. Chunk
// bytes travel in the request body; session routing fields travel as query
// parameters so clients never have to multipart-encode.
type UploadController struct {
	uploads *upload.Manager
	queue   *jobs.Queue
}

func NewUploadController(uploads *upload.Manager, queue *jobs.Queue) *UploadController {
	return &UploadController{uploads: uploads, queue: queue}
}

func (c *UploadController) StartUpload(ctx echo.Context) error {
	var req struct {
		FileName     string `json:"file_name"`
		FileSize     int64  `json:"file_size"`
		ContentType  string `json:"content_type"`
		CollectionID string `json:"collection_id"`
		UploaderID   string `json:"uploader_id"`
		UploaderName string `json:"uploader_name"`
		Caption      string `json:"caption"`
	}

	if err := ctx.Bind(&req); err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid request body")
	}

	sessionID, err := c.uploads.Start(upload.StartRequest{
		FileName:     req.FileName,
		FileSize:     req.FileSize,
		DeclaredType: req.ContentType,
		CollectionID: req.CollectionID,
		UploaderID:   req.UploaderID,
		UploaderName: req.UploaderName,
		Caption:      req.Caption,
	})
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	}

	return ctx.JSON(http.StatusOK, map[string]string{"session_id": sessionID})
}

// chunkRequest carries the routing fields for one chunk upload.
type chunkRequest struct {
	SessionID   string
	ChunkIndex  int
	TotalChunks int
}

func bindChunkRequest(ctx echo.Context, req *chunkRequest) error {
	var err error

	req.SessionID = ctx.QueryParam("session_id")
	if req.SessionID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "Missing session ID")
	}

	req.ChunkIndex, err = strconv.Atoi(ctx.QueryParam("chunk_index"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid chunk index")
	}

	req.TotalChunks, err = strconv.Atoi(ctx.QueryParam("total_chunks"))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Invalid total chunks")
	}

	return nil
}

func (c *UploadController) SendChunk(ctx echo.Context) error {
	var req chunkRequest
	if err := bindChunkRequest(ctx, &req); err != nil {
		return err
	}

	data, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, "Failed to read chunk data")
	}

	ack, err := c.uploads.AcceptChunk(req.SessionID, req.ChunkIndex, data, req.TotalChunks)
	if err != nil {
		return uploadErrorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, ack)
}

// CompleteUpload assembles the chunks, hands the result to the processing
// queue, and returns the freshly created media asset. The asset comes back
// with processing still true; clients follow the websocket feed or poll the
// media endpoint for the final state.
func (c *UploadController) CompleteUpload(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")
	if sessionID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "Missing session ID")
	}

	file, err := c.uploads.Assemble(sessionID)
	if err != nil {
		return uploadErrorResponse(ctx, err)
	}

	session, err := c.uploads.Session(sessionID)
	if err != nil {
		return uploadErrorResponse(ctx, err)
	}

	asset, err := c.queue.Submit(session, file)
	if err != nil {
		return errorResponse(ctx, http.StatusInternalServerError, "Failed to queue processing")
	}

	if err := c.uploads.MarkHandedOff(sessionID); err != nil {
		return uploadErrorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, asset)
}

func (c *UploadController) CancelUpload(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")
	if sessionID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "Missing session ID")
	}

	c.uploads.Cancel(sessionID)
	return ctx.NoContent(http.StatusOK)
}

func (c *UploadController) GetUploadStatus(ctx echo.Context) error {
	sessionID := ctx.QueryParam("session_id")
	if sessionID == "" {
		return errorResponse(ctx, http.StatusBadRequest, "Missing session ID")
	}

	session, err := c.uploads.Session(sessionID)
	if err != nil {
		return uploadErrorResponse(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"session_id":       session.ID,
		"status":           session.Status,
		"received_bytes":   session.ReceivedBytes(),
		"received_chunks":  session.ReceivedChunks(),
		"total_chunks":     session.TotalChunks,
		"progress_percent": session.ProgressPercent(),
	})
}

// uploadErrorResponse maps upload manager errors onto HTTP statuses.
func uploadErrorResponse(ctx echo.Context, err error) error {
	switch {
	case errors.Is(err, upload.ErrNotFound):
		return errorResponse(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, upload.ErrSizeExceeded):
		return errorResponse(ctx, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, upload.ErrSessionClosed):
		return errorResponse(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, upload.ErrIncompleteUpload):
		return errorResponse(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, upload.ErrInvalidChunk), errors.Is(err, upload.ErrIntegrityMismatch):
		return errorResponse(ctx, http.StatusBadRequest, err.Error())
	default:
		return errorResponse(ctx, http.StatusInternalServerError, err.Error())
	}
}

func errorResponse(ctx echo.Context, httpError int, msg string) error {
	return ctx.JSON(httpError, map[string]string{"error": msg})
}
