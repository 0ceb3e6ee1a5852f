package utils

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteJSONFile marshals a Go object and writes it atomically with the
// given file mode. State files hold credentials, so callers typically
// pass 0600.
func WriteJSONFile(filePath string, data interface{}, perm os.FileMode) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return AtomicWriteFile(filePath, jsonData, perm)
}

// ReadJSONFile reads a JSON file into a Go object
func ReadJSONFile(filePath string, target interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from %s: %w", filePath, err)
	}

	return nil
}
