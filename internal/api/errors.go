// Package api exposes config entries, flows, and climate entities over
// gRPC using the JSON codec from internal/rpc.
package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joshp123/gohome-tfiac/internal/climate"
	"github.com/joshp123/gohome-tfiac/internal/entries"
	"github.com/joshp123/gohome-tfiac/internal/flow"
	"github.com/joshp123/gohome-tfiac/internal/rate"
)

// statusError translates domain errors into gRPC status errors. op
// prefixes the message.
func statusError(op string, err error) error {
	var code codes.Code
	var limited rate.RateLimitError
	switch {
	case errors.Is(err, climate.ErrEntityNotFound),
		errors.Is(err, entries.ErrEntryNotFound),
		errors.Is(err, entries.ErrUnknownIntegration),
		errors.Is(err, flow.ErrUnknownFlow),
		errors.Is(err, flow.ErrUnknownHandler):
		code = codes.NotFound
	case errors.Is(err, climate.ErrNotSupported),
		errors.Is(err, climate.ErrOutOfRange):
		code = codes.InvalidArgument
	case errors.As(err, &limited):
		code = codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		code = codes.Internal
	}
	return status.Errorf(code, "%s: %v", op, err)
}
