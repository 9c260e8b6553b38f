package util

import (
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	blobUnsafeRe = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	hostUnsafeRe = regexp.MustCompile(`[^a-zA-Z0-9.\-]`)
)

func RecordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// GetJobQueueKey returns the list key holding queued packaging jobs.
func GetJobQueueKey(production bool) string {
	if production {
		return "googleplaypackagejobs-prod"
	}
	return "googleplaypackagejobs-nonprod"
}

func GetJobID(host, hash string) string {
	return fmt.Sprintf("googleplaypackagejob:%s:%s", host, hash)
}

// BlobSafeName converts a job id or file name into a name accepted by blob
// stores: whitespace and colons become dashes, everything outside
// [a-zA-Z0-9-_] is dropped.
func BlobSafeName(name string) string {
	s := whitespaceRe.ReplaceAllString(name, "-")
	s = strings.ReplaceAll(s, ":", "-")
	return blobUnsafeRe.ReplaceAllString(s, "")
}

// DownloadFileName is the attachment name offered for a completed package.
func DownloadFileName(host string) string {
	return fmt.Sprintf("%s - Google Play Package.zip", hostUnsafeRe.ReplaceAllString(host, "_"))
}

// NormalizeSlashes converts Windows separators so deletion globs behave the
// same on every host.
func NormalizeSlashes(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}
