// Package core provides the file submission state manager behind the CSV
// upload widget.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support
// reference. Students can quote the code when asking for help.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	          Action: Upload a smaller file
//	          Patterns: "file too large"
//
//	FILE002 - Invalid CSV: The header row could not be read
//	          Action: Check for unbalanced quotes in the first line
//	          Patterns: "invalid csv"
//
//	FILE003 - Encoding error: File contains invalid characters
//	          Action: Save file as UTF-8 encoding
//	          Patterns: "encoding error"
//
//	FILE004 - Invalid data: The stored file data is corrupted
//	          Action: Upload the file again
//	          Patterns: "invalid transport string"
//
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Check that you selected the right file
//	          Patterns: "empty file"
//
//	FILE006 - Not accepted: File does not match what this question expects
//	          Action: Check the file name and type
//	          Patterns: "file not accepted"
//
//	FILE007 - Binary content: This file is not text and cannot be previewed
//	          Action: Download the file to view it
//	          Patterns: "binary content"
//
// # Prior Submission Errors (SUB001-SUB099)
//
//	SUB001 - Fetch failed: Previously submitted file could not be loaded
//	         Action: Upload the file again
//	         Patterns: "fetch failed"
//
//	SUB002 - Not found: No previously submitted file exists
//	         Action: Upload the file
//	         Patterns: "prior submission not found"
//
// # Widget Errors (WID001-WID099)
//
//	WID001 - Widget not found: Upload widget session not found
//	         Action: Reload the page
//	         Patterns: "widget not found", "widget destroyed"
//
//	WID002 - No content: Nothing has been uploaded for this file yet
//	         Action: Upload the file first
//	         Patterns: "no content for file"
//
//	WID003 - Download expired: Download link is no longer valid
//	         Action: Reload the page to get a fresh link
//	         Patterns: "resource not found"
//
//	WID004 - Unknown column: This question has no such column
//	         Action: Reload the page and choose again
//	         Patterns: "unknown column"
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many uploads in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Request Errors (REQ001)
//
//	REQ001 - Malformed request body or parameters
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns come first.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user
// messages. The first matching pattern wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Prior Submission Errors (SUB001-SUB002)
	// Must stay ahead of the file errors below.
	// =========================================================================
	{
		pattern: "fetch failed",
		msg: UserMessage{
			Message: "Previously submitted file could not be loaded",
			Action:  "Upload the file again",
			Code:    "SUB001",
		},
	},
	{
		pattern: "prior submission not found",
		msg: UserMessage{
			Message: "No previously submitted file exists",
			Action:  "Upload the file",
			Code:    "SUB002",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE007)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Upload a smaller file",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "The CSV header row could not be read",
			Action:  "Check for unbalanced quotes in the first line of the file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "invalid transport string",
		msg: UserMessage{
			Message: "The stored file data is corrupted",
			Action:  "Upload the file again",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Check that you selected the right file",
			Code:    "FILE005",
		},
	},
	{
		pattern: "file not accepted",
		msg: UserMessage{
			Message: "This file is not accepted for this question",
			Action:  "Check the file name and type",
			Code:    "FILE006",
		},
	},
	{
		pattern: "binary content",
		msg: UserMessage{
			Message: "This file is not text and cannot be previewed",
			Action:  "Download the file to view it",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Widget Errors (WID001-WID004)
	// =========================================================================
	{
		pattern: "widget not found",
		msg: UserMessage{
			Message: "Upload widget session not found",
			Action:  "Reload the page",
			Code:    "WID001",
		},
	},
	{
		pattern: "widget destroyed",
		msg: UserMessage{
			Message: "Upload widget session not found",
			Action:  "Reload the page",
			Code:    "WID001",
		},
	},
	{
		pattern: "no content for file",
		msg: UserMessage{
			Message: "Nothing has been uploaded for this file yet",
			Action:  "Upload the file first",
			Code:    "WID002",
		},
	},
	{
		pattern: "resource not found",
		msg: UserMessage{
			Message: "Download link is no longer valid",
			Action:  "Reload the page to get a fresh link",
			Code:    "WID003",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "This question has no such column",
			Action:  "Reload the page and choose again",
			Code:    "WID004",
		},
	},

	// =========================================================================
	// Upload Errors (UPL002-UPL005)
	// =========================================================================
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Request Errors (REQ001)
	// =========================================================================
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Reload the page and try again",
			Code:    "REQ001",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches the known patterns (case-insensitive) and returns the first
// match, or the ERR000 fallback.
//
// Example:
//
//	msg := MapError(fmt.Errorf("save data.csv: %w", ErrEmptyBlob))
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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

// IsUserFacing reports whether err matches a specific pattern rather than
// the generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
