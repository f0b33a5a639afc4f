// Package outcome maps terminal screen text to success, error or unknown.
//
// The matching is a fixed list of substrings tuned to the wording of one
// family of IBM i applications. It is not a general screen parser.
package outcome

import (
	"fmt"
	"strings"
)

// Verdict is the classification of a result screen.
type Verdict string

const (
	Success Verdict = "success"
	Error   Verdict = "error"
	Unknown Verdict = "unknown"
)

// Classification is the result of Classify.
type Classification struct {
	Verdict Verdict `json:"verdict"`
	Message string  `json:"message"`
}

// Matched strings, compared against lowercased lines.
var (
	errorPatterns = []string{
		"invalid",
		"error",
		"already exists",
		"not found",
		"unauthorized",
		"access denied",
		"invalid option",
		"invalid command",
		"invalid entry",
		"duplicate",
		"cannot",
		"unable to",
		"failed",
	}
	successPatterns = []string{
		"added successfully",
		"updated successfully",
		"completed successfully",
		"successful",
		"added",
		"updated",
		"completed",
	}
)

const functionKeyMarker = "F3=Exit"

// ScanErrors reports the first line containing an error pattern.
func ScanErrors(screen string) (bool, string) {
	if line, ok := firstMatch(screen, errorPatterns); ok {
		return true, "Error detected: " + line
	}
	return false, ""
}

// Check runs the error scan and, if nothing is found, the success scan.
// The bool is true only when an error line was found.
func Check(screen string) (bool, string) {
	if found, msg := ScanErrors(screen); found {
		return true, msg
	}
	if line, ok := firstMatch(screen, successPatterns); ok {
		return false, "Success: " + line
	}
	return false, "No errors detected"
}

// Classify interprets the screen shown after a form submission. identifier
// is the record key the form created, e.g. a company number.
func Classify(screen, identifier string) Classification {
	lines := splitLines(screen)

	if identifier != "" && strings.Contains(screen, identifier+" added") {
		return Classification{Success, fmt.Sprintf("SUCCESS: %s was added successfully", identifier)}
	}
	if strings.Contains(screen, "Invalid country") {
		return Classification{Error, "ERROR: Invalid country code"}
	}
	if strings.Contains(strings.ToLower(screen), "already exists") {
		return Classification{Error, fmt.Sprintf("ERROR: %s already exists", identifier)}
	}
	if strings.Contains(screen, "Invalid") || strings.Contains(screen, "Error") {
		var found []string
		for _, line := range lines {
			if strings.Contains(line, "Invalid") || strings.Contains(line, "Error") {
				found = append(found, strings.TrimSpace(line))
			}
		}
		if len(found) > 0 {
			return Classification{Error, "VALIDATION ERROR: " + strings.Join(found, "; ")}
		}
		if line, ok := lineBeforeFunctionKeys(lines); ok {
			return Classification{Error, "ERROR: " + line}
		}
		return Classification{Error, "ERROR: Unknown validation error occurred"}
	}
	if line, ok := lineBeforeFunctionKeys(lines); ok {
		return Classification{Error, "ERROR: " + line}
	}
	return Classification{Unknown, "UNKNOWN: could not determine the outcome, manual check required"}
}

func firstMatch(screen string, patterns []string) (string, bool) {
	for _, line := range splitLines(screen) {
		lower := strings.ToLower(strings.TrimSpace(line))
		if lower == "" {
			continue
		}
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return strings.TrimSpace(line), true
			}
		}
	}
	return "", false
}

// lineBeforeFunctionKeys returns the first non-blank line directly above a
// function key legend. IBM i screens put their message line there.
func lineBeforeFunctionKeys(lines []string) (string, bool) {
	for i, line := range lines {
		if i == 0 || !strings.Contains(line, functionKeyMarker) {
			continue
		}
		if prev := strings.TrimSpace(lines[i-1]); prev != "" {
			return prev, true
		}
	}
	return "", false
}

func splitLines(screen string) []string {
	screen = strings.ReplaceAll(screen, "\r\n", "\n")
	return strings.Split(screen, "\n")
}
