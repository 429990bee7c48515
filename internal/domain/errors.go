package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeExtraction        = "EXTRACTION_ERROR"
	ErrCodeProvider          = "PROVIDER_ERROR"
	ErrCodeDimensionMismatch = "DIMENSION_MISMATCH"
	ErrCodeStorage           = "STORAGE_ERROR"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidChunkConfig = NewDomainError(ErrCodeValidation, "chunk overlap must be smaller than chunk size")
	ErrInvalidTopK        = NewDomainError(ErrCodeValidation, "top_k must be a positive integer")
	ErrEmptyMessage       = NewDomainError(ErrCodeValidation, "message cannot be empty")
	ErrMissingFilename    = NewDomainError(ErrCodeValidation, "filename is required")
	ErrUnsupportedFile    = NewDomainError(ErrCodeValidation, "only PDF files are supported")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
)

// Extraction errors
var (
	ErrNoExtractableText = NewDomainError(ErrCodeExtraction, "document contains no extractable text")
)

// Integrity and configuration errors
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeDimensionMismatch, "embedding dimension does not match configured dimension")
	ErrArchiveNotEnabled = NewDomainError(ErrCodeValidation, "document archive not configured: S3_ENDPOINT required")
)

// NewExtractionError wraps an extraction failure with the offending filename.
func NewExtractionError(filename string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeExtraction, fmt.Sprintf("failed to extract text from %s", filename), err)
}

// NewProviderError wraps an external provider failure for the given operation.
func NewProviderError(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeProvider, fmt.Sprintf("provider call failed during %s", operation), err)
}

// NewStorageError wraps a persistence failure for the given operation.
func NewStorageError(operation string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, fmt.Sprintf("storage operation failed during %s", operation), err)
}
