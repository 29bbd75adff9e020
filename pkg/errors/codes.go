package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
	ErrCodeConfiguration      ErrorCode = "COMMON_017"
	ErrCodeStorageError       ErrorCode = "COMMON_018"
	ErrCodeMessagingError     ErrorCode = "COMMON_019"
)

// Short aliases used at call sites.
const (
	CodeUnknown        = ErrorCode("")
	CodeOK             = ErrorCode("OK")
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeDatabaseError  = ErrCodeDatabaseError
	CodeCacheError     = ErrCodeCacheError
)

// Asset Module Error Codes
const (
	ErrCodeAssetNotFound        ErrorCode = "AST_001"
	ErrCodeAssetInvalid         ErrorCode = "AST_002"
	ErrCodeRegistrationFailed   ErrorCode = "AST_003"
	ErrCodeMetadataUploadFailed ErrorCode = "AST_004"
	ErrCodeNoPendingViolations  ErrorCode = "AST_005"
)

// Session Module Error Codes
const (
	ErrCodeNoActiveSession ErrorCode = "SES_001"
	ErrCodeSessionInput    ErrorCode = "SES_002"
)

// Enforcement Module Error Codes
const (
	ErrCodeDisputeFailed           ErrorCode = "ENF_001"
	ErrCodeMessageGenerationFailed ErrorCode = "ENF_002"
	ErrCodeAlertDeliveryFailed     ErrorCode = "ENF_003"
)

// Data Source Error Codes
const (
	ErrCodeDataSourceUnavailable   ErrorCode = "SRC_001"
	ErrCodeDataSourceRateLimited   ErrorCode = "SRC_002"
	ErrCodeDataSourceAuthFailed    ErrorCode = "SRC_003"
	ErrCodeDataSourceParseError    ErrorCode = "SRC_004"
	ErrCodeDataSourceNotConfigured ErrorCode = "SRC_005"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusForbidden,
	ErrCodeNotImplemented:     http.StatusNotImplemented,
	ErrCodeConfiguration:      http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessagingError:     http.StatusInternalServerError,

	ErrCodeAssetNotFound:        http.StatusNotFound,
	ErrCodeAssetInvalid:         http.StatusBadRequest,
	ErrCodeRegistrationFailed:   http.StatusBadGateway,
	ErrCodeMetadataUploadFailed: http.StatusBadGateway,
	ErrCodeNoPendingViolations:  http.StatusConflict,

	ErrCodeNoActiveSession: http.StatusConflict,
	ErrCodeSessionInput:    http.StatusBadRequest,

	ErrCodeDisputeFailed:           http.StatusBadGateway,
	ErrCodeMessageGenerationFailed: http.StatusBadGateway,
	ErrCodeAlertDeliveryFailed:     http.StatusBadGateway,

	ErrCodeDataSourceUnavailable:   http.StatusServiceUnavailable,
	ErrCodeDataSourceRateLimited:   http.StatusTooManyRequests,
	ErrCodeDataSourceAuthFailed:    http.StatusBadGateway,
	ErrCodeDataSourceParseError:    http.StatusBadGateway,
	ErrCodeDataSourceNotConfigured: http.StatusServiceUnavailable,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",
	ErrCodeNotImplemented:     "not implemented",
	ErrCodeConfiguration:      "configuration missing or invalid",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessagingError:     "messaging error",

	ErrCodeAssetNotFound:        "ip asset not found",
	ErrCodeAssetInvalid:         "invalid ip asset",
	ErrCodeRegistrationFailed:   "ip registration failed",
	ErrCodeMetadataUploadFailed: "metadata upload failed",
	ErrCodeNoPendingViolations:  "no pending violations",

	ErrCodeNoActiveSession: "no active session",
	ErrCodeSessionInput:    "invalid session input",

	ErrCodeDisputeFailed:           "dispute creation failed",
	ErrCodeMessageGenerationFailed: "message generation failed",
	ErrCodeAlertDeliveryFailed:     "failed to deliver alert",

	ErrCodeDataSourceUnavailable:   "data source unavailable",
	ErrCodeDataSourceRateLimited:   "data source rate limited",
	ErrCodeDataSourceAuthFailed:    "data source authentication failed",
	ErrCodeDataSourceParseError:    "failed to parse data source response",
	ErrCodeDataSourceNotConfigured: "data source credentials not configured",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
