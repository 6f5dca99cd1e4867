// Package attachments resolves user-supplied image attachments to the
// bytes and media type the chat-completions API needs.
package attachments

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ferrule/courier/internal/conversation"
)

// extMediaTypes maps recognized image filename extensions to their
// media type. Anything else falls back to image/jpeg with a warning.
var extMediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

const defaultMediaType = "image/jpeg"

// MediaType determines the media type of an attachment: an explicit
// MediaType wins, then the filename extension, then a jpeg default.
func MediaType(att conversation.Attachment, logger *slog.Logger) string {
	if att.MediaType != "" {
		return att.MediaType
	}
	name := att.Filename
	if name == "" {
		name = att.Path
	}
	if mt, ok := extMediaTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	if logger != nil {
		logger.Warn("attachment media type unknown, assuming jpeg", "filename", name)
	}
	return defaultMediaType
}

// Resolve returns the raw bytes of a local attachment: inline data if
// present, otherwise the file at Path. Remote attachments (URL only)
// are not fetched here; the transport passes their URL through.
func Resolve(att conversation.Attachment) ([]byte, error) {
	if len(att.Data) > 0 {
		return att.Data, nil
	}
	if att.Path != "" {
		data, err := os.ReadFile(att.Path)
		if err != nil {
			return nil, fmt.Errorf("read attachment %s: %w", att.Path, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("attachment %q has no data or path", att.Filename)
}
