package handlers

import (
	"errors"
	"net/http"

	"github.com/asakaida/reviewlab/internal/repositories"
	"github.com/asakaida/reviewlab/internal/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// internalErrorMessage replaces server fault details in responses; the
// details are logged instead.
const internalErrorMessage = "internal server error"

// clientMessage is the error text a client may see for err
func clientMessage(err error, code int) string {
	if code >= http.StatusInternalServerError {
		return internalErrorMessage
	}
	return err.Error()
}

// httpStatus maps a service error to an HTTP status code. Serializer
// failures land in the default branch: they are server faults.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// grpcError converts a service error to a gRPC status error
func grpcError(err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, internalErrorMessage)
	}
}
