package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	se, ok := err.(*SdexError)
	if !ok {
		// Wrap standard error
		se = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", se.Message))

	if len(se.Details) > 0 {
		for k, v := range se.Details {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
		}
	}

	sb.WriteString(fmt.Sprintf("[%s]", se.Code))
	return sb.String()
}

// FormatForLog returns a single-line representation for structured logging.
// The cause chain is flattened into the message.
func FormatForLog(err error) string {
	if err == nil {
		return ""
	}

	se, ok := err.(*SdexError)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString(se.Error())
	if se.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(se.Cause.Error())
	}
	return sb.String()
}
