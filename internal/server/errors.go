package server

import "net/http"

type httpError struct {
	Status  int
	Message string
}

func (e *httpError) Error() string {
	return e.Message
}

var (
	errPathNotExist = &httpError{
		Status:  http.StatusNotFound,
		Message: "Path does not exist",
	}

	errForbidden = &httpError{
		Status:  http.StatusForbidden,
		Message: "Permission denied",
	}

	errMethodNotAllowed = &httpError{
		Status:  http.StatusMethodNotAllowed,
		Message: "Method not allowed",
	}
)
