package models

import "time"

// Ingestion statuses. Failures are reported as errors from the pipeline, not
// as an outcome status.
const (
	IngestProcessed = "processed"
	IngestSkipped   = "skipped"
)

// IngestionOutcome is the result of running one document through the pipeline.
type IngestionOutcome struct {
	Status      string
	Fingerprint string
	ChunkCount  int
}

// DocumentMetadata describes an ingested (or skipped) upload.
type DocumentMetadata struct {
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	UploadDate  time.Time `json:"upload_date"`
	DocID       string    `json:"doc_id"`
	ChunkCount  int       `json:"chunk_count"`
}

// IngestionResponse is the body of the POST /documents response.
type IngestionResponse struct {
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Data    *DocumentMetadata `json:"data,omitempty"`
}
