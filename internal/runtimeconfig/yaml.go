package runtimeconfig

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/nexus/internal/errs"
	"github.com/haasonsaas/nexus/pkg/models"
)

// applyYAMLFile decodes path onto cfg, expanding ${VAR} references first
// the same way the corpus's own config loader does, so secrets can be
// referenced from the environment without being committed to the file.
func applyYAMLFile(cfg *models.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.NotFound, err, fmt.Sprintf("read config file %q", path))
	}
	expanded := os.ExpandEnv(string(data))

	decoder := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return errs.Wrap(errs.Validation, err, "parse config file")
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errs.New(errs.Validation, "config file must contain a single YAML document")
	}
	return nil
}
