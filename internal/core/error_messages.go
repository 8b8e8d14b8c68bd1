package core

// error_messages.go maps ingestion errors to messages shown by the scoreboard
// and the terminal viewer. Users can quote the code when reporting a problem.
//
// # Source Errors (SRC001-SRC099)
//
//	SRC001 - Source unreachable: The data source could not be read
//	         Action: Check the file path, or the sheet URL and credentials
//	         Match: ErrSourceUnreachable, "no such file", "permission denied"
//
//	SRC002 - Invalid reference: The spreadsheet URL has no /d/<id> segment
//	         Action: Copy the full URL from the browser address bar
//	         Match: ErrInvalidReference
//
//	SRC003 - Conflicting selection: Both a local path and a spreadsheet URL were given
//	         Action: Choose exactly one source
//	         Match: "not both", "no source", "does not match"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Malformed row: A row could not be parsed and was skipped
//	         Action: Check the file for unbalanced quotes
//	         Match: ErrMalformedRow
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request timeout or cancellation
//	         Action: Please try again
//	         Match: context.DeadlineExceeded, context.Canceled, "timeout"
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the logs for the technical error.
//
// Sentinel errors are matched with errors.Is before any text pattern, so a
// wrapped sentinel always maps to its own code.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgUnreachable = UserMessage{
		Message: "The data source could not be read",
		Action:  "Check the file path, or the sheet URL and credentials",
		Code:    "SRC001",
	}
	msgInvalidReference = UserMessage{
		Message: "The spreadsheet URL is not valid",
		Action:  "Copy the full URL from the browser address bar",
		Code:    "SRC002",
	}
	msgConflictingSource = UserMessage{
		Message: "Exactly one source must be selected",
		Action:  "Give either a local path or a spreadsheet URL",
		Code:    "SRC003",
	}
	msgMalformedRow = UserMessage{
		Message: "A row could not be parsed and was skipped",
		Action:  "Check the file for unbalanced quotes",
		Code:    "ROW001",
	}
	msgRequest = UserMessage{
		Message: "Request timed out or was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
)

// sentinelMessages is checked first, in order.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrInvalidReference, msgInvalidReference},
	{ErrMalformedRow, msgMalformedRow},
	{context.DeadlineExceeded, msgRequest},
	{context.Canceled, msgRequest},
	{ErrSourceUnreachable, msgUnreachable},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that arrive without a sentinel, e.g. from
// request decoding. Patterns are lowercase and the first match wins.
var errorPatterns = []errorPattern{
	{pattern: "not both", msg: msgConflictingSource},
	{pattern: "no source", msg: msgConflictingSource},
	{pattern: "does not match", msg: msgConflictingSource},
	{pattern: "no such file", msg: msgUnreachable},
	{pattern: "permission denied", msg: msgUnreachable},
	{pattern: "timeout", msg: msgRequest},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. A nil error
// yields the zero UserMessage.
//
// Example:
//
//	_, err := fetcher.Fetch(ctx, "https://example.com/nope", "")
//	msg := MapError(err)
//	// msg.Code == "SRC002"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range sentinelMessages {
		if errors.Is(err, s.target) {
			return s.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
