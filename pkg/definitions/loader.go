package definitions

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/peopleops/stride/pkg/models"
)

// LoadDirectory registers every *.json definition found in dir. Registration
// is all-or-nothing per file; the first invalid definition aborts the load
// so a deployment never starts with a partial catalog.
func LoadDirectory(store *Store, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read definitions directory: %w", err)
	}

	loaded := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var def models.WorkflowDefinition
		if err := json.Unmarshal(data, &def); err != nil {
			return loaded, fmt.Errorf("failed to parse %s: %w", path, err)
		}

		if err := store.Register(&def); err != nil {
			return loaded, fmt.Errorf("failed to register %s: %w", path, err)
		}

		loaded++
	}

	return loaded, nil
}
