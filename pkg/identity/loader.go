package identity

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadProviderFile builds a StaticProvider from a JSON file holding an array
// of users. A missing path yields an empty provider so deployments without
// approval steps need no file.
func LoadProviderFile(path string) (*StaticProvider, error) {
	if path == "" {
		return NewStaticProvider(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read approvers file: %w", err)
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse approvers file %s: %w", path, err)
	}

	return NewStaticProvider(users), nil
}
