package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRulesFile накладывает пороги из YAML-файла на base.
// Ключи, отсутствующие в файле, сохраняют значения из base; неизвестные ключи считаются ошибкой.
func LoadRulesFile(path string, base ValidationConfig) (ValidationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := rules.Validate(); err != nil {
		return base, fmt.Errorf("invalid rules file %s: %w", path, err)
	}

	return rules, nil
}
