// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// Kind classifies an error so clients can branch on it without parsing Detail.
type Kind string

const (
	KindAuthenticationRequired Kind = "AuthenticationRequired"
	KindAuthorizationDenied    Kind = "AuthorizationDenied"
	KindInvalidCounterValue    Kind = "InvalidCounterValue"
	KindPersistenceFailure     Kind = "PersistenceFailure"
	KindValidation             Kind = "ValidationError"
	KindNotFound               Kind = "NotFound"
	KindConflict               Kind = "Conflict"
	KindRateLimited            Kind = "RateLimited"
	KindInternal               Kind = "InternalError"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string            `json:"detail"`
	Kind   Kind              `json:"kind,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// WithKind builds an error envelope tagged with k.
func WithKind(k Kind, msg string) *APIError {
	return &APIError{Detail: msg, Kind: k}
}

// NewValidation wraps multiple field errors.
func NewValidation(fields map[string]string) *APIError {
	return &APIError{Detail: "Error de validacion", Kind: KindValidation, Fields: fields}
}

// NewContadorInvalido reports a rejected counter value on a single field.
func NewContadorInvalido(campo, motivo string) *APIError {
	return &APIError{
		Detail: "Valor de contador invalido",
		Kind:   KindInvalidCounterValue,
		Fields: map[string]string{campo: motivo},
	}
}
