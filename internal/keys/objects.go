package keys

import (
	"fmt"
	"path"
	"strings"
)

// sanitizeKey replaces spaces with hyphens and lowercases the string.
func sanitizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

// UploadsPrefix is where accepted uploads are archived.
const UploadsPrefix = "uploads/"

// Upload returns the object key under which an accepted user CSV is archived.
func Upload(contentHash, fileName string) string {
	ext := path.Ext(fileName)
	if ext == "" {
		ext = ".csv"
	}
	return UploadsPrefix + contentHash + sanitizeKey(ext)
}

// FeedCache returns the object key of the cached copy of a source feed.
func FeedCache(source, fileName string) string {
	return fmt.Sprintf("feeds/%s/%s", sanitizeKey(source), sanitizeKey(path.Base(fileName)))
}
