package core

// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Assignment Errors (ASN001-ASN099)
//
//	ASN001 - Invalid bit assignments: the width list could not be parsed
//	         Action: Use comma-separated positive integers such as 12,12,8
//	         Patterns: "invalid bit assignments"
//
//	ASN002 - Width mismatch: the widths do not add up to the column bit length
//	         Action: Adjust the widths so they sum to the column's bit length
//	         Patterns: "bit count mismatch"
//
//	ASN003 - Names mismatch: custom names do not match the number of fields
//	         Action: Give exactly one name per field, or leave names empty
//	         Patterns: "column names count mismatch"
//
//	ASN004 - Invalid chunk size: uniform chunk size below one bit
//	         Action: Choose a chunk size of at least 1
//	         Patterns: "invalid chunk size"
//
//	ASN005 - Unknown mode: the slicing mode is not uniform, explicit or layout
//	         Patterns: "unknown slicing mode"
//
// # Column and Layout Errors
//
//	COL001 - Column not found in the uploaded file
//	LAY001 - Layout name is not registered
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - File could not be parsed as CSV or XLSX
//	FILE003 - Unsupported file extension
//	FILE004 - No file, or a file without a header row
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - Job was cancelled
//	JOB002 - Too many jobs running
//	JOB003 - Job not found or expired
//	JOB004 - Job has not finished yet
//	JOB005 - Job or request timed out
//
// # Rate Limiting (RATE001)
//
// Unmatched errors map to ERR000.

import (
	"fmt"
	"strings"
)

// UserMessage contains user-friendly error information.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains and the first match wins, so
// more specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Assignment Errors (ASN001-ASN005)
	// =========================================================================
	{
		pattern: "invalid bit assignments",
		msg: UserMessage{
			Message: "Invalid bit assignments",
			Action:  "Use comma-separated positive integers such as 12,12,8",
			Code:    "ASN001",
		},
	},
	{
		pattern: "bit count mismatch",
		msg: UserMessage{
			Message: "Total bits do not match the column bit length",
			Action:  "Adjust the widths so they add up to the column's bit length",
			Code:    "ASN002",
		},
	},
	{
		pattern: "column names count mismatch",
		msg: UserMessage{
			Message: "Column names count mismatch",
			Action:  "Give exactly one name per field, or leave names empty",
			Code:    "ASN003",
		},
	},
	{
		pattern: "invalid chunk size",
		msg: UserMessage{
			Message: "Invalid chunk size",
			Action:  "Choose a chunk size of at least 1 bit",
			Code:    "ASN004",
		},
	},
	{
		pattern: "unknown slicing mode",
		msg: UserMessage{
			Message: "Unknown slicing mode",
			Action:  "Use uniform, explicit or layout",
			Code:    "ASN005",
		},
	},

	// =========================================================================
	// Column and Layout Errors (COL001, LAY001)
	// =========================================================================
	{
		pattern: "column not found",
		msg: UserMessage{
			Message: "Column not found in the file",
			Action:  "Check the column name against the file's header row",
			Code:    "COL001",
		},
	},
	{
		pattern: "unknown layout",
		msg: UserMessage{
			Message: "Layout not found",
			Action:  "Pick one of the layouts listed at /api/layouts",
			Code:    "LAY001",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE004)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller parts",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated",
			Code:    "FILE002",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "File is not a valid Excel workbook",
			Action:  "Re-save the file as .xlsx",
			Code:    "FILE002",
		},
	},
	{
		pattern: "unsupported file format",
		msg: UserMessage{
			Message: "Unsupported file format",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a file with a header row",
			Code:    "FILE004",
		},
	},

	// =========================================================================
	// Job Errors (JOB001-JOB005)
	// =========================================================================
	{
		pattern: "job cancelled",
		msg: UserMessage{
			Message: "Job was cancelled",
			Action:  "Start a new job when ready",
			Code:    "JOB001",
		},
	},
	{
		pattern: "too many concurrent jobs",
		msg: UserMessage{
			Message: "System is busy processing other jobs",
			Action:  "Please wait a moment and try again",
			Code:    "JOB002",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Job not found",
			Action:  "The job may have expired. Please start a new job",
			Code:    "JOB003",
		},
	},
	{
		pattern: "job still running",
		msg: UserMessage{
			Message: "Job has not finished yet",
			Action:  "Wait for the job to complete, then try again",
			Code:    "JOB004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "JOB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "JOB005",
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
// Support staff should check application logs for the original technical
// error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
//	msg := MapError(bits.VerifyTotal([]int{4}, 8))
//	// msg.Code == "ASN002"
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

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
