package model

import "time"

// Job is one queued unit of post-assembly processing work. It references the
// assembled file rather than copying it; the job queue owns both until the
// job is terminal.
type Job struct {
	AssetID   string
	File      *AssembledFile
	Session   *UploadSession
	Attempts  int
	NotBefore time.Time
}
