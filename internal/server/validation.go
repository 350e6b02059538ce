package server

import (
	"fmt"
	"strings"
)

const (
	maxPromptLength = 5000
	minSessionIDLen = 5
)

// validSessionID reports whether a client-supplied session identifier has the
// accepted shape. Keys are minted with a "session_" prefix; "portfolio_" is
// accepted for externally assigned keys.
func validSessionID(sessionID string) bool {
	if len(sessionID) < minSessionIDLen {
		return false
	}
	return strings.HasPrefix(sessionID, "session_") || strings.HasPrefix(sessionID, "portfolio_")
}

// validatePrompt trims and bounds a chat prompt
func validatePrompt(prompt string) (string, error) {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return "", fmt.Errorf("prompt cannot be empty or whitespace")
	}
	if len(prompt) > maxPromptLength {
		return "", fmt.Errorf("prompt cannot exceed %d characters", maxPromptLength)
	}
	return trimmed, nil
}

// validateUpload checks the uploaded file's name and size before processing
func validateUpload(filename string, size, maxSize int64) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("only PDF files are allowed")
	}
	if size == 0 {
		return fmt.Errorf("uploaded file is empty")
	}
	if size > maxSize {
		return fmt.Errorf("file size exceeds maximum allowed size of %.1fMB", float64(maxSize)/(1024*1024))
	}
	return nil
}
