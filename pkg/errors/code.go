package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13099: Language registry errors
// 13100-13199: Compile errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// IO errors (10100-10199)
	FileSystemError ErrorCode = 10100

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Language Registry Errors (13000-13099) ==========

	LanguageNotSupported  ErrorCode = 13003
	LanguageConfigInvalid ErrorCode = 13010
	LanguageDuplicateID   ErrorCode = 13011
	LanguageDirMissing    ErrorCode = 13012
	TemplateInvalid       ErrorCode = 13013

	// ========== Compile Errors (13100-13199) ==========

	CompileQueueFull      ErrorCode = 13100
	JudgeSystemError      ErrorCode = 13101
	CompilationError      ErrorCode = 13102
	CompilerUnavailable   ErrorCode = 13110
	CompileOutputEncoding ErrorCode = 13111
	CompileCanceled       ErrorCode = 13112
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	FileSystemError: "File system operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Language registry
	LanguageNotSupported:  "Programming language not supported",
	LanguageConfigInvalid: "Invalid language definition",
	LanguageDuplicateID:   "Duplicate language identifier",
	LanguageDirMissing:    "Language directory not found",
	TemplateInvalid:       "Invalid command template",

	// Compile
	CompileQueueFull:      "Compile queue is full, please try again later",
	JudgeSystemError:      "Judge system error",
	CompilationError:      "Compilation error",
	CompilerUnavailable:   "Compiler is not available",
	CompileOutputEncoding: "Compiler output is not valid UTF-8",
	CompileCanceled:       "Compilation was canceled",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == LanguageNotSupported:
		return 404
	case c == TooManyRequests, c == CompileQueueFull:
		return 429
	case c == ServiceUnavailable, c == CompilerUnavailable:
		return 503
	case c == Timeout, c == CompileCanceled:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams:
		return 400
	default:
		return 500
	}
}
