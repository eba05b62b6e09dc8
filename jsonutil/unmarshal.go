package jsonutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Unmarshals the given type from the given JSON file. Files with a ".toml"
// extension are read as TOML and then mapped onto T through its JSON field
// names.
func UnmarshalFromFile[T any](filePath string) (T, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".toml") {
		return unmarshalFromTOMLFile[T](filePath)
	}

	f, err := os.Open(filePath)
	if err != nil {
		var empty T
		return empty, fmt.Errorf("unable to open %q: %w", filePath, err)
	}
	defer f.Close()

	var result T
	err = json.NewDecoder(f).Decode(&result)
	if err != nil {
		var empty T
		return empty, fmt.Errorf(
			"unable to deserialize JSON from %q: %w",
			filePath,
			err,
		)
	}

	return result, nil
}

func unmarshalFromTOMLFile[T any](filePath string) (T, error) {
	var empty T

	var raw map[string]any
	_, err := toml.DecodeFile(filePath, &raw)
	if err != nil {
		return empty, fmt.Errorf(
			"unable to deserialize TOML from %q: %w",
			filePath,
			err,
		)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return empty, fmt.Errorf("unable to convert %q to JSON: %w", filePath, err)
	}

	var result T
	err = json.Unmarshal(data, &result)
	if err != nil {
		return empty, fmt.Errorf("unable to map %q onto config: %w", filePath, err)
	}
	return result, nil
}
