package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultEndpoint = "http://localhost:8080"
	endpointEnv     = "SATVAULT_ENDPOINT"
	tokenEnv        = "SATVAULT_TOKEN"
)

// profile holds connection settings shared by every subcommand.
type profile struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
	Caller   string `yaml:"caller"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".satvault", "profile.yaml")
}

// loadProfile reads path if it exists. An explicit path that is missing is an
// error; the default location is optional.
func loadProfile(path string, explicit bool) (profile, error) {
	p := profile{Endpoint: defaultEndpoint}
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &p); err != nil {
				return profile{}, fmt.Errorf("parse profile %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return profile{}, fmt.Errorf("read profile: %w", err)
		}
	}
	if value := strings.TrimSpace(os.Getenv(endpointEnv)); value != "" {
		p.Endpoint = value
	}
	if value := strings.TrimSpace(os.Getenv(tokenEnv)); value != "" {
		p.Token = value
	}
	if strings.TrimSpace(p.Endpoint) == "" {
		p.Endpoint = defaultEndpoint
	}
	return p, nil
}

func saveProfile(path string, p profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
