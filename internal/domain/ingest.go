package domain

// IngestStatus tracks where a document is in the ingestion pipeline.
// Failed is terminal and reachable from any step.
type IngestStatus string

const (
	IngestStatusReceived   IngestStatus = "received"
	IngestStatusExtracting IngestStatus = "extracting"
	IngestStatusChunking   IngestStatus = "chunking"
	IngestStatusEmbedding  IngestStatus = "embedding"
	IngestStatusStoring    IngestStatus = "storing"
	IngestStatusComplete   IngestStatus = "complete"
	IngestStatusFailed     IngestStatus = "failed"
)

// IngestResult is returned when a document has been fully ingested.
type IngestResult struct {
	DocumentID    string
	Filename      string
	ChunksCreated int
	Message       string
}
