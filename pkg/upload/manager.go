// Package upload assembles chunked uploads. Chunks for a session arrive in
// any order and are written to independent temp slots; assembly reorders by
// index, verifies the declared size, and hands the result to the job queue.
package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/hashicorp/go-uuid"
	"github.com/snapify/snapify/pkg/model"
	"github.com/snapify/snapify/pkg/notify"
	"github.com/snapify/snapify/pkg/sniff"
	"github.com/snapify/snapify/pkg/stor"
)

var (
	ErrNotFound          = errors.New("no such upload session")
	ErrInvalidChunk      = errors.New("invalid chunk index")
	ErrSizeExceeded      = errors.New("upload exceeds declared size")
	ErrIncompleteUpload  = errors.New("upload is incomplete")
	ErrIntegrityMismatch = errors.New("assembled size does not match declared size")
	ErrSessionClosed     = errors.New("session is no longer accepting chunks")
)

// StartRequest carries the initiation fields from the client.
type StartRequest struct {
	FileName     string
	FileSize     int64
	DeclaredType string
	CollectionID string
	UploaderID   string
	UploaderName string
	Caption      string
}

// ChunkAck is returned to the transport layer after every accepted chunk.
type ChunkAck struct {
	Status          model.SessionStatus `json:"status"`
	ReceivedBytes   int64               `json:"received_bytes"`
	ProgressPercent int                 `json:"progress_percent"`
}

type Manager struct {
	tmpDir   string
	sessions stor.SessionStor
	notifier notify.Notifier

	// One mutex per session serializes chunk accounting and, critically,
	// assembly: concurrent assembles would double-consume chunk files.
	locks sync.Map
}

func NewManager(tmpDir string, sessions stor.SessionStor, notifier notify.Notifier) *Manager {
	if notifier == nil {
		notifier = notify.NullNotifier{}
	}

	return &Manager{
		tmpDir:   tmpDir,
		sessions: sessions,
		notifier: notifier,
	}
}

func (m *Manager) TmpDir() string {
	return m.tmpDir
}

// Start creates a session and returns its id. Rejects non-positive sizes and
// empty file names before anything touches disk.
func (m *Manager) Start(req StartRequest) (string, error) {
	if req.FileSize <= 0 {
		return "", fmt.Errorf("invalid file size %d", req.FileSize)
	}

	if req.FileName == "" {
		return "", fmt.Errorf("missing file name")
	}

	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &model.UploadSession{
		ID:           id,
		FileName:     filepath.Base(req.FileName),
		DeclaredSize: req.FileSize,
		DeclaredType: req.DeclaredType,
		ChunkSizes:   make(map[int]int64),
		Status:       model.SessionInitiated,
		CollectionID: req.CollectionID,
		UploaderID:   req.UploaderID,
		UploaderName: req.UploaderName,
		Caption:      req.Caption,
		CreatedAt:    now,
		LastActivity: now,
	}

	if _, err := m.sessions.CreateSession(session); err != nil {
		return "", err
	}

	return id, nil
}

// AcceptChunk validates and persists one chunk. A duplicate index overwrites
// its slot and the byte accounting is recomputed from the set of distinct
// indices, so retransmissions are idempotent.
func (m *Manager) AcceptChunk(sessionID string, index int, data []byte, totalChunks int) (ChunkAck, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.sessions.GetSessionByID(sessionID)
	if err != nil {
		return ChunkAck{}, ErrNotFound
	}

	// Chunks are only writable before assembly starts. Once the session is
	// assembling, assembled, or terminal, a late retransmission must not
	// recreate chunk files nobody will clean up.
	if session.Status != model.SessionInitiated && session.Status != model.SessionChunksReceived {
		return ChunkAck{}, ErrSessionClosed
	}

	if totalChunks <= 0 || index < 0 || index >= totalChunks {
		return ChunkAck{}, fmt.Errorf("%w: index %d of %d", ErrInvalidChunk, index, totalChunks)
	}

	if session.TotalChunks == 0 {
		session.TotalChunks = totalChunks
	} else if session.TotalChunks != totalChunks {
		return ChunkAck{}, fmt.Errorf("%w: total chunks changed from %d to %d",
			ErrInvalidChunk, session.TotalChunks, totalChunks)
	}

	// Size check against the prospective accounting. A rejected chunk must
	// not mutate the session in any way.
	prospective := session.ReceivedBytes() - session.ChunkSizes[index] + int64(len(data))
	if prospective > session.DeclaredSize {
		return ChunkAck{}, fmt.Errorf("%w: %d > %d", ErrSizeExceeded, prospective, session.DeclaredSize)
	}

	if err := os.WriteFile(m.chunkPath(sessionID, index), data, 0o600); err != nil {
		return ChunkAck{}, err
	}

	session.ChunkSizes[index] = int64(len(data))
	session.LastActivity = time.Now()

	if session.Complete() && session.Status.CanAdvanceTo(model.SessionChunksReceived) {
		session.Status = model.SessionChunksReceived
	}

	if err := m.sessions.SaveSession(session); err != nil {
		return ChunkAck{}, err
	}

	ack := ChunkAck{
		Status:          session.Status,
		ReceivedBytes:   session.ReceivedBytes(),
		ProgressPercent: session.ProgressPercent(),
	}

	m.notifier.Publish(session.CollectionID, notify.Event{
		ID:              sessionID,
		Status:          notify.StatusReceived,
		ProgressPercent: ack.ProgressPercent,
	})

	return ack, nil
}

// Assemble concatenates all chunks in index order into one file and verifies
// the result against the declared size. Chunk files are deleted as they are
// folded in, so a crash mid-assembly leaves at most one chunk's worth of
// duplicate storage behind.
func (m *Manager) Assemble(sessionID string) (*model.AssembledFile, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.sessions.GetSessionByID(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}

	if session.Status.IsTerminal() {
		return nil, ErrSessionClosed
	}

	if !session.Complete() {
		return nil, fmt.Errorf("%w: %d of %d chunks", ErrIncompleteUpload,
			session.ReceivedChunks(), session.TotalChunks)
	}

	session.Status = model.SessionAssembling
	if err := m.sessions.SaveSession(session); err != nil {
		return nil, err
	}

	outPath := m.assembledPath(sessionID, session.FileName)
	written, sniffHead, err := m.concatChunks(session, outPath)
	if err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}

	if written != session.DeclaredSize {
		m.failSession(session, fmt.Sprintf("assembled %d bytes, declared %d", written, session.DeclaredSize))
		_ = os.Remove(outPath)
		return nil, fmt.Errorf("%w: got %d, declared %d", ErrIntegrityMismatch, written, session.DeclaredSize)
	}

	sniffed := sniff.Detect(sniffHead, session.FileName, session.DeclaredType)
	session.SniffedType = sniffed.MIME
	session.Status = model.SessionAssembled
	session.LastActivity = time.Now()

	if err := m.sessions.SaveSession(session); err != nil {
		return nil, err
	}

	m.notifier.Publish(session.CollectionID, notify.Event{
		ID:              sessionID,
		Status:          notify.StatusAssembled,
		ProgressPercent: 100,
	})

	return &model.AssembledFile{
		SessionID: sessionID,
		Path:      outPath,
		Size:      written,
		MimeType:  sniffed.MIME,
		FileName:  session.FileName,
	}, nil
}

// MarkHandedOff records the handoff to the job queue and evicts the session
// from the active set. Cancellation is impossible past this point.
func (m *Manager) MarkHandedOff(sessionID string) error {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.sessions.GetSessionByID(sessionID)
	if err != nil {
		return ErrNotFound
	}

	if !session.Status.CanAdvanceTo(model.SessionHandedOff) {
		return fmt.Errorf("cannot hand off session in status %s", session.Status)
	}

	return m.sessions.DeleteSession(sessionID)
}

// Cancel removes the session and every temp artifact it owns. Safe to call
// repeatedly and for unknown ids.
func (m *Manager) Cancel(sessionID string) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.sessions.GetSessionByID(sessionID)
	if err != nil {
		return
	}

	m.removeTempArtifacts(session)
	_ = m.sessions.DeleteSession(sessionID)
	m.locks.Delete(sessionID)
}

// Session returns a point-in-time snapshot for progress polling.
func (m *Manager) Session(sessionID string) (*model.UploadSession, error) {
	lock := m.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := m.sessions.GetSessionByID(sessionID)
	if err != nil {
		return nil, ErrNotFound
	}

	return session.Clone(), nil
}

// SweepStale cancels sessions idle for longer than maxAge that never reached
// handoff. Returns the number evicted.
func (m *Manager) SweepStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	evicted := 0

	for _, session := range m.sessions.ListSessions() {
		// The store hands back live sessions; LastActivity is only read
		// under the session's lock.
		id := session.ID
		lock := m.sessionLock(id)
		lock.Lock()
		stale := session.LastActivity.Before(cutoff)
		fileName := session.FileName
		lock.Unlock()

		if stale {
			log.Infof("evicting stale upload session %s (%s)", id, fileName)
			m.Cancel(id)
			evicted++
		}
	}

	return evicted
}

func (m *Manager) sessionLock(sessionID string) *sync.Mutex {
	lock, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (m *Manager) chunkPath(sessionID string, index int) string {
	return filepath.Join(m.tmpDir, fmt.Sprintf("%s_%d", sessionID, index))
}

func (m *Manager) assembledPath(sessionID, fileName string) string {
	return filepath.Join(m.tmpDir, fmt.Sprintf("%s_%s", sessionID, fileName))
}

// headWriter retains the first limit bytes that pass through it so the
// assembled file can be MIME sniffed without reopening it.
type headWriter struct {
	buf   []byte
	limit int
}

func (w *headWriter) Write(p []byte) (int, error) {
	if remaining := w.limit - len(w.buf); remaining > 0 {
		if len(p) < remaining {
			remaining = len(p)
		}
		w.buf = append(w.buf, p[:remaining]...)
	}
	return len(p), nil
}

// concatChunks streams every chunk into outPath in strict index order and
// returns the byte count plus the head bytes for MIME sniffing.
func (m *Manager) concatChunks(session *model.UploadSession, outPath string) (int64, []byte, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return 0, nil, err
	}
	defer out.Close()

	head := &headWriter{limit: 3072}
	w := io.MultiWriter(out, head)

	var written int64

	for i := 0; i < session.TotalChunks; i++ {
		chunkFile := m.chunkPath(session.ID, i)

		in, err := os.Open(chunkFile)
		if err != nil {
			return written, nil, err
		}

		n, err := io.Copy(w, in)
		_ = in.Close()
		if err != nil {
			return written, nil, err
		}

		written += n
		_ = os.Remove(chunkFile)
	}

	if err := out.Sync(); err != nil {
		return written, nil, err
	}

	return written, head.buf, nil
}

func (m *Manager) failSession(session *model.UploadSession, reason string) {
	session.Status = model.SessionFailed
	_ = m.sessions.SaveSession(session)

	m.notifier.Publish(session.CollectionID, notify.Event{
		ID:     session.ID,
		Status: notify.StatusFailed,
		Error:  reason,
	})

	m.removeTempArtifacts(session)
}

func (m *Manager) removeTempArtifacts(session *model.UploadSession) {
	for i := 0; i < session.TotalChunks; i++ {
		_ = os.Remove(m.chunkPath(session.ID, i))
	}

	_ = os.Remove(m.assembledPath(session.ID, session.FileName))
}
