package score

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/sweeply/sweeply/internal/errors"
)

// ContentType pairs a classified type with the classifier's confidence.
type ContentType struct {
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// extTypes is the heuristic extension table used when no content-type
// model is present.
var extTypes = map[string]string{
	"txt": "document", "md": "document", "doc": "document", "docx": "document",
	"pdf": "document", "rtf": "document", "pages": "document",
	"jpg": "image", "jpeg": "image", "png": "image", "gif": "image",
	"bmp": "image", "heic": "image", "tiff": "image", "webp": "image",
	"mp4": "video", "mov": "video", "avi": "video", "mkv": "video",
	"mp3": "audio", "aac": "audio", "flac": "audio", "wav": "audio", "m4a": "audio",
	"zip": "archive", "gz": "archive", "tar": "archive", "7z": "archive", "rar": "archive",
	"log": "log",
	"tmp": "temporary", "bak": "temporary", "swp": "temporary",
	"o": "build-artifact", "pyc": "build-artifact", "class": "build-artifact",
	"go": "source", "py": "source", "js": "source", "ts": "source",
	"c": "source", "swift": "source", "rs": "source", "java": "source",
	"json": "data", "csv": "data", "xml": "data", "yaml": "data", "yml": "data",
	"db": "database", "sqlite": "database",
	"app": "application", "dmg": "application", "pkg": "application",
}

// ContentTypeModel maps filename tokens to types with learned
// confidences. Stored under <app-data>/models/ContentTypeModel.json.
type ContentTypeModel struct {
	Extensions map[string]ContentType `json:"extensions"`
}

// LoadContentTypeModel reads an optional content-type model; a missing
// file returns (nil, nil).
func LoadContentTypeModel(path string) (*ContentTypeModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.IO("reading content-type model", err)
	}
	var m ContentTypeModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Encoding("decoding content-type model", err)
	}
	return &m, nil
}

// ClassifyContentType returns the content type for a filename. The model
// wins when it knows the extension; otherwise the heuristic table
// answers with fixed confidence, and unknown extensions fall through to
// a low-confidence "unknown".
func (s *Scorer) ClassifyContentType(name string) ContentType {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if s.contentModel != nil {
		if ct, ok := s.contentModel.Extensions[ext]; ok {
			return ct
		}
	}
	if t, ok := extTypes[ext]; ok {
		return ContentType{Type: t, Confidence: 0.8}
	}
	return ContentType{Type: "unknown", Confidence: 0.2}
}
