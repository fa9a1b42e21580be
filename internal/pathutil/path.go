// Package pathutil normalizes working-directory paths supplied in a
// local-terminal session's shellDescriptor.
package pathutil

import (
	"fmt"
	"os"
	"strings"
)

// FormatPath expands a leading "~" to $HOME and collapses duplicate
// slashes. Used to normalize the working directory requested for a new
// local-terminal session before it is handed to the shell host.
func FormatPath(path string) (string, error) {
	// Default to current directory if path is empty
	if path == "" {
		path = "."
	}

	// Handle home directory expansion
	if strings.HasPrefix(path, "~") {
		if os.Getenv("HOME") == "" {
			return "", fmt.Errorf("home directory not found")
		}
		path = os.Getenv("HOME") + path[1:]
	}

	// Clean up double slashes
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}

	return path, nil
}
