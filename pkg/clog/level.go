package clog

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"
)

type Level int

const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

// Slog converts l to the matching slog level.
func (l Level) Slog() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Log emits msg on the default logger at level l.
func Log(ctx context.Context, l Level, msg string, args ...any) {
	slog.Log(ctx, l.Slog(), msg, args...)
}

func HTTPStatusToLevel(status int) Level {
	switch {
	case status >= 100 && status < 400:
		return LevelInfo
	case status == 499:
		return LevelInfo
	case status >= 400 && status < 500:
		return LevelWarn
	default:
		return LevelError
	}
}

// Caller mistakes are logged at info; everything else is an error.
var infoCodes = map[connect.Code]struct{}{
	connect.CodeCanceled:           {},
	connect.CodeInvalidArgument:    {},
	connect.CodeDeadlineExceeded:   {},
	connect.CodeNotFound:           {},
	connect.CodeAlreadyExists:      {},
	connect.CodePermissionDenied:   {},
	connect.CodeFailedPrecondition: {},
	connect.CodeAborted:            {},
	connect.CodeOutOfRange:         {},
	connect.CodeUnauthenticated:    {},
}

func ConnectCodeToLevel(code connect.Code) Level {
	if _, ok := infoCodes[code]; ok {
		return LevelInfo
	}
	return LevelError
}
