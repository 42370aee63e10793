package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldPostingID is the structured log field key for the posting identifier.
	FieldPostingID = "posting_id"
	// FieldPostingTitle is the structured log field key for the posting title.
	FieldPostingTitle = "posting_title"
	// FieldState is the structured log field key for the pipeline state of a posting.
	FieldState = "state"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger.
// A nil logger is replaced with a no-op one.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// PostingFields returns the fields identifying a posting in log entries.
func PostingFields(id, title string) []zap.Field {
	return StringFields(
		StringField{Key: FieldPostingID, Value: id},
		StringField{Key: FieldPostingTitle, Value: title},
	)
}

// WithPosting attaches posting identification to the provided logger.
func WithPosting(logger *zap.Logger, id, title string) *zap.Logger {
	return WithFields(logger, PostingFields(id, title)...)
}
