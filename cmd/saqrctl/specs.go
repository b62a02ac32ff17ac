package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bryanwahyu/saqr/internal/config"
	"github.com/bryanwahyu/saqr/internal/domain/inspection"
)

// parseSpecs turns CODE=requirement flag values into checklist specs.
func parseSpecs(values []string) ([]inspection.ChecklistSpec, error) {
	specs := make([]inspection.ChecklistSpec, 0, len(values))
	for _, v := range values {
		code, req, ok := strings.Cut(v, "=")
		code, req = strings.TrimSpace(code), strings.TrimSpace(req)
		if !ok || code == "" || req == "" {
			return nil, fmt.Errorf("spec %q: want CODE=requirement", v)
		}
		specs = append(specs, inspection.ChecklistSpec{Code: code, Requirement: req})
	}
	if len(specs) == 0 {
		return nil, errors.New("at least one --spec is required")
	}
	return specs, nil
}

// loadConfig reads --config, then $CONFIG_PATH, then ./config.yaml. A missing
// default file yields the built-in defaults plus env keys.
func loadConfig() (*config.Config, error) {
	path := configPath
	explicit := path != ""
	if !explicit {
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path, explicit = v, true
		} else {
			path = "config.yaml"
		}
	}
	cfg, err := config.Load(path)
	if err != nil && !explicit && errors.Is(err, os.ErrNotExist) {
		return config.Parse(nil)
	}
	return cfg, err
}
