package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"photostore/internal/blobstore"
	"photostore/internal/format"
	"photostore/internal/models"
)

var (
	outputFormatter format.Formatter
	stdout          io.Writer = os.Stdout
)

func structuredOutput() bool {
	return outputFormatter != nil
}

func writeStructured(payload any) error {
	return outputFormatter.Write(stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(stdout, format, args...)
	return err
}

func writeRecordList(records []models.BlobRecord) error {
	for _, record := range records {
		if err := writePlain("%s\n", formatRecordLine(record)); err != nil {
			return err
		}
	}
	return nil
}

func writeRecordDetail(record models.BlobRecord) error {
	lines := []string{
		fmt.Sprintf("id: %s", record.ID),
		fmt.Sprintf("locator: %s", blobstore.LocatorFor(record.ID, false)),
		fmt.Sprintf("content_hash: %s", record.ContentHash),
		fmt.Sprintf("mime_type: %s", record.MimeType),
		fmt.Sprintf("size_bytes: %d", record.SizeBytes),
	}
	if record.HasDimensions() {
		lines = append(lines, fmt.Sprintf("dimensions: %dx%d", *record.Width, *record.Height))
	}
	lines = append(lines, fmt.Sprintf("uploader_id: %s", record.UploaderID))
	if record.IsDerivative {
		lines = append(lines, "derivative: true")
		if record.OriginalBlobID != nil {
			lines = append(lines, fmt.Sprintf("original_blob_id: %s", *record.OriginalBlobID))
		}
	} else {
		lines = append(lines, fmt.Sprintf("reference_count: %d", record.ReferenceCount))
	}
	lines = append(lines, fmt.Sprintf("created_at: %s", formatTime(record.CreatedAt)))
	if record.LastAccessedAt != nil {
		lines = append(lines, fmt.Sprintf("last_accessed_at: %s", formatTime(*record.LastAccessedAt)))
	}

	for _, line := range lines {
		if err := writePlain("%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

func formatRecordLine(record models.BlobRecord) string {
	dims := "?x?"
	if record.HasDimensions() {
		dims = fmt.Sprintf("%dx%d", *record.Width, *record.Height)
	}
	return fmt.Sprintf("%s [%s] %s %s %d bytes - %s", record.ID, record.Kind(), record.MimeType, dims, record.SizeBytes, record.UploaderID)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
