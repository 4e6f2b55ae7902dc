package model

import (
	"time"
)

type SessionStatus string

const (
	SessionInitiated      SessionStatus = "initiated"
	SessionChunksReceived SessionStatus = "chunks_received"
	SessionAssembling     SessionStatus = "assembling"
	SessionAssembled      SessionStatus = "assembled"
	SessionHandedOff      SessionStatus = "handed_off"
	SessionFailed         SessionStatus = "failed"
	SessionCancelled      SessionStatus = "cancelled"
)

// statusRank orders the forward-only part of the session state machine.
var statusRank = map[SessionStatus]int{
	SessionInitiated:      0,
	SessionChunksReceived: 1,
	SessionAssembling:     2,
	SessionAssembled:      3,
	SessionHandedOff:      4,
}

func (s SessionStatus) IsTerminal() bool {
	return s == SessionHandedOff || s == SessionFailed || s == SessionCancelled
}

// CanAdvanceTo reports whether the state machine allows moving from s to next.
// Failure and cancellation are reachable from any non-terminal state; the
// rest only advance forward.
func (s SessionStatus) CanAdvanceTo(next SessionStatus) bool {
	if s.IsTerminal() {
		return false
	}

	if next == SessionFailed || next == SessionCancelled {
		return true
	}

	return statusRank[next] > statusRank[s]
}

// UploadSession tracks one in-flight chunked upload. Chunk byte accounting is
// recomputed from the set of distinct indices so retransmitted chunks never
// inflate ReceivedBytes.
type UploadSession struct {
	ID           string
	FileName     string
	DeclaredSize int64
	DeclaredType string
	SniffedType  string
	TotalChunks  int
	ChunkSizes   map[int]int64
	Status       SessionStatus
	CollectionID string
	UploaderID   string
	UploaderName string
	Caption      string
	CreatedAt    time.Time
	LastActivity time.Time
}

// Clone returns an independent copy. ChunkSizes is duplicated so the copy
// can be read without holding the session's lock.
func (s *UploadSession) Clone() *UploadSession {
	cp := *s
	cp.ChunkSizes = make(map[int]int64, len(s.ChunkSizes))
	for i, size := range s.ChunkSizes {
		cp.ChunkSizes[i] = size
	}
	return &cp
}

func (s *UploadSession) ReceivedBytes() int64 {
	var total int64
	for _, size := range s.ChunkSizes {
		total += size
	}
	return total
}

func (s *UploadSession) ReceivedChunks() int {
	return len(s.ChunkSizes)
}

func (s *UploadSession) ProgressPercent() int {
	if s.DeclaredSize <= 0 {
		return 0
	}

	pct := int(s.ReceivedBytes() * 100 / s.DeclaredSize)
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Complete reports whether every index in [0, TotalChunks) has been received.
func (s *UploadSession) Complete() bool {
	if s.TotalChunks <= 0 {
		return false
	}

	for i := 0; i < s.TotalChunks; i++ {
		if _, ok := s.ChunkSizes[i]; !ok {
			return false
		}
	}
	return true
}

// AssembledFile points at the concatenated upload on temporary storage. It is
// handed by reference to the job queue and deleted once the job is terminal.
type AssembledFile struct {
	SessionID string
	Path      string
	Size      int64
	MimeType  string
	FileName  string
}
