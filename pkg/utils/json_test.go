package utils

import (
	"path/filepath"
	"testing"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteAndReadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payload.json")

	in := testPayload{Name: "route-12", Count: 3}
	if err := WriteJSONFile(path, in, 0600); err != nil {
		t.Fatalf("WriteJSONFile failed: %v", err)
	}

	var out testPayload
	if err := ReadJSONFile(path, &out); err != nil {
		t.Fatalf("ReadJSONFile failed: %v", err)
	}

	if out != in {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
}

func TestReadJSONFile_Missing(t *testing.T) {
	var out testPayload
	err := ReadJSONFile(filepath.Join(t.TempDir(), "missing.json"), &out)
	if err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestReadJSONFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := AtomicWriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	var out testPayload
	if err := ReadJSONFile(path, &out); err == nil {
		t.Error("Expected error for invalid JSON, got nil")
	}
}
