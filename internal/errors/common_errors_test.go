package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	cause := fmt.Errorf("zip: not a valid zip file")

	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"parsing", NewParsingError("open workbook", cause), ErrTypeParsing, "[PARSING] open workbook: zip: not a valid zip file"},
		{"storage", NewStorageError("write report", nil), ErrTypeStorage, "[STORAGE] write report"},
		{"validation", NewAppValidationError("bad column", nil), ErrTypeValidation, "[VALIDATION] bad column"},
		{"not found", NewNotFoundError("sheet"), ErrTypeNotFound, "[NOT_FOUND] sheet not found"},
		{"config", NewConfigError("load", nil), ErrTypeConfig, "[CONFIG] load"},
		{"advisory", NewAdvisoryError("request", cause), ErrTypeAdvisory, "[ADVISORY] request: zip: not a valid zip file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestAppErrorUnwrapAndContext(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("write report", cause).WithContext("path", "/tmp/out")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "/tmp/out", err.Context["path"])
}
