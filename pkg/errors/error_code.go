package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidChannel       ErrorCode = 102
	ErrCodeInvalidInterval      ErrorCode = 103
	ErrCodeInvalidRequest       ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeInvalidVersion       ErrorCode = 106

	// Protocol errors (200-299)
	ErrCodeProtocol           ErrorCode = 200
	ErrCodeCorrelationTimeout ErrorCode = 201
	ErrCodeCancelled          ErrorCode = 202
	ErrCodeOverloaded         ErrorCode = 203
	ErrCodeAlreadyStarted     ErrorCode = 204
	ErrCodeNotStarted         ErrorCode = 205
	ErrCodeEventDecode        ErrorCode = 206
	ErrCodeUnknownEvent       ErrorCode = 207

	// Capacity errors (300-399)
	ErrCodeCapacityExceeded ErrorCode = 300

	// Transport errors (400-499)
	ErrCodeTransportClosed ErrorCode = 400
	ErrCodeTransportDial   ErrorCode = 401
	ErrCodeTransportRead   ErrorCode = 402
	ErrCodeTransportWrite  ErrorCode = 403

	// Processor errors (500-599)
	ErrCodeProcessorNotFound      ErrorCode = 500
	ErrCodeProcessorAlreadyExists ErrorCode = 501
	ErrCodeRuleExecution          ErrorCode = 502
	ErrCodeRuleNotFound           ErrorCode = 503
	ErrCodeRuleAlreadyExists      ErrorCode = 504

	// Notification errors (600-699)
	ErrCodeDeliveryFailed ErrorCode = 600

	// Config errors (700-799)
	ErrCodeConfigLoad      ErrorCode = 700
	ErrCodeVersionMismatch ErrorCode = 701
	ErrCodeHistoryFetch    ErrorCode = 702
)
