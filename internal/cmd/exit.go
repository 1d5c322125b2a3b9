package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/visiprobe/visiprobe/internal/core/engine"
)

// ExitCodeFor maps a non-nil command error to a semantic exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.Is(err, engine.ErrConfiguration), stderrors.Is(err, errMemoryBackend):
		return foundry.ExitConfigInvalid
	case stderrors.As(err, &envelope) && envelope.Code == "CONFIG_INVALID":
		return foundry.ExitConfigInvalid
	case stderrors.As(err, &envelope) && envelope.Code == "EXTERNAL_SERVICE_ERROR":
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// usagePrefixes are the message starts cobra uses for argument and flag errors.
var usagePrefixes = []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument", "flag needs an argument"}

// IsUsageError reports whether err came from cobra's argument or flag parsing.
func IsUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, prefix := range usagePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

// ExitWithCode logs err with the exit code's catalog metadata and exits. A
// nil logger writes to stderr instead.
func ExitWithCode(logger *logging.Logger, code foundry.ExitCode, msg string, err error) {
	exit := exitMeta{code: int(code), name: "UNKNOWN"}
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		exit = exitMeta{code: info.Code, name: info.Name, category: info.Category, description: info.Description}
	}

	if logger == nil {
		reportExit(os.Stderr, exit, msg, err)
		os.Exit(exit.code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", exit.code),
		zap.String("exit_name", exit.name),
		zap.String("exit_category", exit.category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
			zap.String("trace_id", envelope.TraceID),
		)
		if len(envelope.Context) > 0 {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Error(msg, fields...)
	os.Exit(exit.code)
}

// ExitWithCodeStderr exits before a logger exists.
func ExitWithCodeStderr(code foundry.ExitCode, msg string, err error) {
	ExitWithCode(nil, code, msg, err)
}

type exitMeta struct {
	code        int
	name        string
	category    string
	description string
}

func reportExit(w io.Writer, exit exitMeta, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case stderrors.As(err, &envelope):
		fmt.Fprintf(w, "Error: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if cause, ok := envelope.Context["wrapped_error"]; ok {
			fmt.Fprintf(w, "Cause: %v\n", cause)
		}
	case err != nil:
		fmt.Fprintf(w, "Error: %s: %v\n", msg, err)
	default:
		fmt.Fprintf(w, "Error: %s\n", msg)
	}
	if exit.description != "" {
		fmt.Fprintf(w, "Exit code %d (%s): %s\n", exit.code, exit.name, exit.description)
	}
}
