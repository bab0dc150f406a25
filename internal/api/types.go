package api

import "photostore/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// UploadRequest is the JSON body of an upload. The server also accepts the
// camelCase and legacy key spellings handled by models.NormalizeUpload.
type UploadRequest struct {
	DataURL           string `json:"data_url"`
	UploaderID        string `json:"uploader_id"`
	GenerateThumbnail *bool  `json:"generate_thumbnail,omitempty"`
}

// UploadResponse identifies the stored record. Created is false when the
// bytes were already stored.
type UploadResponse struct {
	ID               models.BlobID `json:"id"`
	Created          bool          `json:"created"`
	Locator          string        `json:"locator"`
	ThumbnailLocator string        `json:"thumbnail_locator,omitempty"`
}

// PhotoResponse is record metadata plus its locators.
type PhotoResponse struct {
	models.BlobRecord
	Locator          string `json:"locator"`
	ThumbnailLocator string `json:"thumbnail_locator,omitempty"`
}

// DeleteResponse reports what a delete removed.
type DeleteResponse struct {
	ID                 models.BlobID `json:"id"`
	Deleted            bool          `json:"deleted"`
	DerivativesDeleted int           `json:"derivatives_deleted"`
	ReclaimedBytes     int64         `json:"reclaimed_bytes"`
}

// InfoResponse describes the store behind a server.
type InfoResponse struct {
	HashAlgorithm    string `json:"hash_algorithm"`
	SchemaVersion    int    `json:"schema_version"`
	AvailableVersion int    `json:"available_version"`
	Originals        int64  `json:"originals"`
	Derivatives      int64  `json:"derivatives"`
	Unreferenced     int64  `json:"unreferenced"`
	TotalBytes       int64  `json:"total_bytes"`
}
