package ranking

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type exportFile struct {
	Snapshot
	ExportedAt time.Time `json:"exported_at"`
}

// WriteJSON writes the snapshot to a JSON file, creating parent directories.
func WriteJSON(filePath string, snap Snapshot) error {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(exportFile{Snapshot: snap, ExportedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0644)
}

// ReadJSON loads a previously exported snapshot. Returns a zero snapshot if the file doesn't exist.
func ReadJSON(filePath string) (Snapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}
	var f exportFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Snapshot{}, err
	}
	return f.Snapshot, nil
}
