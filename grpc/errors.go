package bridgegrpc

import (
	"context"
	"errors"
	"strconv"
	"strings"

	errorsmod "cosmossdk.io/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	bridge "github.com/blockberries/bridgeberry"
	"github.com/blockberries/bridgeberry/server"
	"github.com/blockberries/bridgeberry/types"
)

// Trailer keys carrying the bridge error across the wire.
const (
	trailerCode     = "x-bridge-code"
	trailerQuery    = "x-bridge-query"
	trailerActual   = "x-bridge-actual"
	trailerExpected = "x-bridge-expected"
)

// grpcCode maps a bridge error onto the closest gRPC status code.
func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, server.ErrClosed):
		return codes.Unavailable
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, bridge.ErrNotFound), errors.Is(err, bridge.ErrUnknownBlock):
		return codes.NotFound
	case errors.Is(err, bridge.ErrUnauthorized), errors.Is(err, bridge.ErrNotEligible):
		return codes.PermissionDenied
	case errors.Is(err, bridge.ErrWrongStatus), errors.Is(err, bridge.ErrAlreadyReleased),
		errors.Is(err, bridge.ErrTamperedRequest):
		return codes.FailedPrecondition
	case errors.Is(err, bridge.ErrUnsupported):
		return codes.Unimplemented
	case errors.Is(err, bridge.ErrTransferFailed):
		return codes.Aborted
	case errors.Is(err, bridge.ErrOverflow):
		return codes.OutOfRange
	case bridge.CodeOf(err) > 1:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// toStatus converts err into a gRPC status and attaches the bridge
// error code, and for status mismatches the statuses involved, as
// trailers.
func toStatus(ctx context.Context, err error) error {
	md := metadata.Pairs(trailerCode, strconv.FormatUint(uint64(bridge.CodeOf(err)), 10))
	if ws, ok := bridge.AsWrongStatus(err); ok {
		expected := make([]string, len(ws.Expected))
		for i, s := range ws.Expected {
			expected[i] = strconv.Itoa(int(s))
		}
		md.Append(trailerQuery, ws.ID.String())
		md.Append(trailerActual, strconv.Itoa(int(ws.Actual)))
		md.Append(trailerExpected, strings.Join(expected, ","))
	}
	_ = grpc.SetTrailer(ctx, md)
	return status.Error(grpcCode(err), err.Error())
}

// fromStatus rebuilds a bridge error from a failed call and its
// trailers. Errors without a bridge code are returned unchanged.
func fromStatus(err error, md metadata.MD) error {
	if err == nil {
		return nil
	}
	st := status.Convert(err)
	if st.Code() == codes.Unavailable && strings.Contains(st.Message(), server.ErrClosed.Error()) {
		return errorsmod.Wrap(server.ErrClosed, "remote bridge")
	}
	vals := md.Get(trailerCode)
	if len(vals) == 0 {
		return err
	}
	code, perr := strconv.ParseUint(vals[0], 10, 32)
	if perr != nil {
		return err
	}
	if ws, ok := wrongStatus(md); ok {
		return ws
	}
	base := bridge.FromCode(uint32(code))
	if base == nil {
		return err
	}
	return errorsmod.Wrap(base, st.Message())
}

func wrongStatus(md metadata.MD) (*bridge.WrongStatusError, bool) {
	query, actual := md.Get(trailerQuery), md.Get(trailerActual)
	if len(query) == 0 || len(actual) == 0 {
		return nil, false
	}
	id, err := types.ParseQueryID(query[0])
	if err != nil {
		return nil, false
	}
	a, err := strconv.Atoi(actual[0])
	if err != nil {
		return nil, false
	}
	ws := &bridge.WrongStatusError{ID: id, Actual: types.Status(a)}
	if exp := md.Get(trailerExpected); len(exp) > 0 && exp[0] != "" {
		for _, s := range strings.Split(exp[0], ",") {
			n, err := strconv.Atoi(s)
			if err != nil {
				return nil, false
			}
			ws.Expected = append(ws.Expected, types.Status(n))
		}
	}
	return ws, true
}
