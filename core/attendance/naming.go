package attendance

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	blobPrefix = "attendance/"
	spacesRe   = regexp.MustCompile(`\s+`)
	unsafeRe   = regexp.MustCompile(`[^\w.-]+`)
)

// DeriveUserID turns a free-text name into a user id: "Jane Doe" -> "jane_doe".
func DeriveUserID(name string) string {
	return spacesRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

// LiveBlobName names a live capture: attendance/<unix-ms>.<ext>
func LiveBlobName(at time.Time, ext string) string {
	return fmt.Sprintf("%s%d.%s", blobPrefix, at.UnixMilli(), ext)
}

// UploadBlobName names an uploaded file: attendance/<name>_<unix-ms>.<ext>
func UploadBlobName(name string, at time.Time, ext string) string {
	safe := unsafeRe.ReplaceAllString(spacesRe.ReplaceAllString(strings.TrimSpace(name), "_"), "")
	return fmt.Sprintf("%s%s_%d.%s", blobPrefix, safe, at.UnixMilli(), ext)
}
