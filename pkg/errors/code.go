package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission intake errors
// 12000-12999: Problem catalog errors
// 13000-13999: Sandbox & Evaluation errors
// 14000-14999: Result delivery errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10201

	// Queue errors (10300-10399)
	QueueError       ErrorCode = 10300
	QueuePublishFail ErrorCode = 10301

	// Storage errors (10400-10499)
	StorageError ErrorCode = 10400

	// Validation errors (10500-10599)
	ValidationFailed   ErrorCode = 10500
	RequiredFieldEmpty ErrorCode = 10501

	// Authentication (10600-10699)
	TokenExpired ErrorCode = 10600
	TokenInvalid ErrorCode = 10601

	// ========== Submission Intake Errors (11000-11999) ==========

	SubmissionNotFound     ErrorCode = 11000
	SubmissionCreateFailed ErrorCode = 11001
	SubmissionUpdateFailed ErrorCode = 11002
	CodeTooLarge           ErrorCode = 11003
	LanguageNotSupported   ErrorCode = 11004
	DuplicateDispatch      ErrorCode = 11005

	// ========== Problem Catalog Errors (12000-12999) ==========

	ProblemNotFound    ErrorCode = 12000
	ProblemFetchFailed ErrorCode = 12001
	TestCasesMissing   ErrorCode = 12002

	// ========== Sandbox & Evaluation Errors (13000-13999) ==========

	// Sandbox (13000-13099)
	SandboxProvisionFailed ErrorCode = 13000
	SandboxRuntimeError    ErrorCode = 13001
	SandboxTimeout         ErrorCode = 13002
	SandboxOutputTooLarge  ErrorCode = 13003

	// Evaluation (13100-13199)
	EvaluationFailed     ErrorCode = 13100
	EvaluatorUnreachable ErrorCode = 13101
	CompilationFailed    ErrorCode = 13102
	HarnessParseError    ErrorCode = 13103

	// ========== Result Delivery Errors (14000-14999) ==========

	DeliveryClosed       ErrorCode = 14000
	SubscribeFailed      ErrorCode = 14001
	WebsocketUpgradeFail ErrorCode = 14002
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Queue
	QueueError:       "Message queue operation failed",
	QueuePublishFail: "Failed to publish message",

	// Storage
	StorageError: "Object storage operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Authentication
	TokenExpired: "Token has expired",
	TokenInvalid: "Invalid token",

	// Submission intake
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	SubmissionUpdateFailed: "Failed to update submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",
	DuplicateDispatch:      "Submission is already being evaluated",

	// Problem catalog
	ProblemNotFound:    "Problem not found",
	ProblemFetchFailed: "Failed to fetch problem from catalog",
	TestCasesMissing:   "Problem has no test cases",

	// Sandbox
	SandboxProvisionFailed: "Failed to provision sandbox",
	SandboxRuntimeError:    "Code failed inside the sandbox",
	SandboxTimeout:         "Execution exceeded the time limit",
	SandboxOutputTooLarge:  "Output limit exceeded",

	// Evaluation
	EvaluationFailed:     "Evaluation failed",
	EvaluatorUnreachable: "Evaluator service is unreachable",
	CompilationFailed:    "Compilation failed",
	HarnessParseError:    "Failed to parse test case input",

	// Delivery
	DeliveryClosed:       "Delivery channel is closed",
	SubscribeFailed:      "Failed to subscribe to delivery channel",
	WebsocketUpgradeFail: "Failed to upgrade websocket connection",
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
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == SubmissionNotFound, c == ProblemNotFound:
		return 404
	case c == DuplicateDispatch:
		return 409
	case c == TooManyRequests:
		return 429
	case c == ServiceUnavailable, c == EvaluatorUnreachable:
		return 503
	case c >= 10500 && c < 10600: // Validation errors
		return 400
	case c == InvalidParams, c == CodeTooLarge, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
