package response

// FieldError mirrors a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Response represents a standard API response format
type Response struct {
	Status     string       `json:"status"`      // "success" or "error"
	StatusCode int          `json:"status_code"` // HTTP status code
	Data       interface{}  `json:"data,omitempty"`
	Meta       *Meta        `json:"meta,omitempty"`
	Error      string       `json:"error,omitempty"`
	Kind       string       `json:"kind,omitempty"` // machine-readable error kind
	Fields     []FieldError `json:"fields,omitempty"`
}

// Meta describes one page of a list.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Paged returns a success response for one page of results.
func Paged(statusCode int, data interface{}, page, limit int, total int64) Response {
	r := Success(statusCode, data)
	r.Meta = &Meta{Page: page, Limit: limit, Total: total}
	return r
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// Fail is Error with a kind and optional field details.
func Fail(statusCode int, kind, msg string, fields ...FieldError) Response {
	r := Error(statusCode, msg)
	r.Kind = kind
	r.Fields = fields
	return r
}
