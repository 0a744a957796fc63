package errors

import "strings"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal      ErrorCode = "COMMON_001"
	ErrCodeValidation    ErrorCode = "COMMON_002"
	ErrCodeNotFound      ErrorCode = "COMMON_003"
	ErrCodeSerialization ErrorCode = "COMMON_004"
	ErrCodeUnavailable   ErrorCode = "COMMON_005"
)

// Aliases used by the generic factories.
const (
	CodeUnknown  = ErrorCode("UNKNOWN")
	CodeOK       = ErrorCode("OK")
	CodeInternal = ErrCodeInternal
	CodeNotFound = ErrCodeNotFound
)

// Input Error Codes
const (
	// ErrCodeInputAccess covers a missing or unreadable label source.
	ErrCodeInputAccess ErrorCode = "INP_001"
	// ErrCodeInputEncoding covers text that does not decode under the
	// declared encoding, or an encoding name that is not recognised.
	ErrCodeInputEncoding ErrorCode = "INP_002"
)

// Entity Stream Error Codes
const (
	ErrCodeUnknownCategory  ErrorCode = "ENT_001"
	ErrCodeMalformedPayload ErrorCode = "ENT_002"
	ErrCodeEntityContract   ErrorCode = "ENT_003"
)

// Export Error Codes
const (
	ErrCodeExportFailed ErrorCode = "EXP_001"
	ErrCodeSinkFailed   ErrorCode = "EXP_002"
	ErrCodeReportFailed ErrorCode = "EXP_003"
)

// Vocabulary Error Codes
const (
	ErrCodeVocabularySource ErrorCode = "VOC_001"
)

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:      "internal error",
	ErrCodeValidation:    "validation failed",
	ErrCodeNotFound:      "resource not found",
	ErrCodeSerialization: "serialization failed",
	ErrCodeUnavailable:   "service unavailable",

	ErrCodeInputAccess:   "label source is not readable",
	ErrCodeInputEncoding: "label text does not decode",

	ErrCodeUnknownCategory:  "unknown entity category",
	ErrCodeMalformedPayload: "malformed entity payload",
	ErrCodeEntityContract:   "entity stream contract violated",

	ErrCodeExportFailed: "export failed",
	ErrCodeSinkFailed:   "record sink failed",
	ErrCodeReportFailed: "report rendering failed",

	ErrCodeVocabularySource: "vocabulary source failed",
}

// fatalModules lists the code prefixes that always abort a run.
var fatalModules = map[string]bool{
	"INP": true,
	"ENT": true,
	"EXP": true,
	"VOC": true,
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

// IsFatalCode reports whether code belongs to a module whose failures stop
// the batch run.
func IsFatalCode(code ErrorCode) bool {
	return fatalModules[ModuleForCode(code)]
}
