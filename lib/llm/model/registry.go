// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Registry maps model identifiers to profiles. Unknown identifiers
// resolve to a designated default instead of failing.
//
// A Registry is built once at startup and read afterwards; it is not
// safe for concurrent Register calls.
type Registry struct {
	profiles map[string]Profile
	fallback Profile
}

// NewRegistry returns a registry holding the built-in profiles with
// [DefaultProfile] as its fallback.
func NewRegistry() *Registry {
	registry := &Registry{
		profiles: make(map[string]Profile),
		fallback: DefaultProfile,
	}
	for _, profile := range builtinProfiles() {
		registry.profiles[profile.ID] = profile
	}
	return registry
}

// Register adds or replaces a profile. The profile is stored under
// its normalized identifier, so "claude-x-20250101" and "claude-x"
// name the same entry.
func (registry *Registry) Register(profile Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	registry.profiles[NormalizeModelName(profile.ID)] = profile
	return nil
}

// SetFallback replaces the profile returned for unknown identifiers.
func (registry *Registry) SetFallback(profile Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	registry.fallback = profile
	return nil
}

// Lookup returns the profile registered for id, trying the exact
// identifier first and then its normalized form.
func (registry *Registry) Lookup(id string) (Profile, bool) {
	if profile, found := registry.profiles[id]; found {
		return profile, true
	}
	profile, found := registry.profiles[NormalizeModelName(id)]
	return profile, found
}

// Resolve returns the profile for id, or the fallback profile when id
// is unknown. It never fails.
func (registry *Registry) Resolve(id string) Profile {
	if profile, found := registry.Lookup(id); found {
		return profile
	}
	return registry.fallback
}

// NormalizeModelName strips a trailing date suffix from a model
// identifier: "claude-sonnet-4-5-20250929" becomes "claude-sonnet-4-5".
// A suffix counts as a date when it is at least eight digits.
func NormalizeModelName(id string) string {
	separator := strings.LastIndexByte(id, '-')
	if separator <= 0 {
		return id
	}
	suffix := id[separator+1:]
	if len(suffix) < 8 {
		return id
	}
	for _, character := range suffix {
		if character < '0' || character > '9' {
			return id
		}
	}
	return id[:separator]
}

// ParseRegistry parses a JSONC array of profiles. Comments and
// trailing commas are allowed.
func ParseRegistry(data []byte) ([]Profile, error) {
	var profiles []Profile
	if err := json.Unmarshal(jsonc.ToJSON(data), &profiles); err != nil {
		return nil, fmt.Errorf("model: parsing registry: %w", err)
	}
	return profiles, nil
}

// LoadRegistryFile reads a JSONC profile file and registers every
// profile in it, replacing built-ins with the same identifier.
func (registry *Registry) LoadRegistryFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("model: reading registry %s: %w", path, err)
	}
	profiles, err := ParseRegistry(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	for _, profile := range profiles {
		if err := registry.Register(profile); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}
