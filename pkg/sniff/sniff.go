// Package sniff determines the content type of an upload from its magic
// bytes, falling back to the file extension and then the client-declared
// type when the bytes are inconclusive.
package sniff

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/snapify/snapify/pkg/model"
)

type Result struct {
	MIME string
	Kind model.MediaKind
	Ext  string
}

// typesByExt covers the formats the pipeline cares about. The stdlib mime
// table is platform dependent (no .mp4 entry without /etc/mime.types), so we
// carry our own.
var typesByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

// Detect sniffs data and resolves a Result. data may be a prefix of the
// file; mimetype only needs the first few KB.
func Detect(data []byte, fileName, declaredType string) Result {
	mt := mimetype.Detect(data)

	resolved := mt.String()
	ext := mt.Extension()

	// application/octet-stream means the magic bytes told us nothing.
	if resolved == "" || resolved == "application/octet-stream" {
		fileExt := strings.ToLower(filepath.Ext(fileName))
		if byExt, ok := typesByExt[fileExt]; ok {
			resolved = byExt
			ext = fileExt
		} else if declaredType != "" {
			resolved = declaredType
			ext = fileExt
		}
	}

	// Strip any parameters, eg "text/plain; charset=utf-8".
	if i := strings.Index(resolved, ";"); i >= 0 {
		resolved = strings.TrimSpace(resolved[:i])
	}

	return Result{
		MIME: resolved,
		Kind: KindOf(resolved),
		Ext:  ext,
	}
}

func KindOf(mimeType string) model.MediaKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return model.MediaKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return model.MediaKindVideo
	default:
		return model.MediaKindOther
	}
}
