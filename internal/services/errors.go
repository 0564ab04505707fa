package services

import "errors"

// Service errors
var (
	// Input errors
	ErrInvalidInput    = errors.New("invalid input")
	ErrPartialMapping  = errors.New("manual mapping must name all three columns")
	ErrInvalidGapFill  = errors.New("invalid gap fill strategy")
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFileType = errors.New("invalid file type")

	// Run errors
	ErrDocumentUnreadable = errors.New("document could not be opened")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
