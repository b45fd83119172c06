package core

import (
	"fmt"
	"strings"
)

const (
	ProfileProduction  = "production"
	ProfileDevelopment = "development"
	ProfileTest        = "test"
)

type Config struct {
	Name string `koanf:"name" mapstructure:"name"`
	// Profile controls descriptor reloads: anything but production refreshes
	// the catalog before every dispatch.
	Profile string `koanf:"profile" mapstructure:"profile"`
	// Locations are handed to location aware descriptor sources in order.
	Locations []string `koanf:"locations" mapstructure:"locations"`
	Engines   []string `koanf:"engines" mapstructure:"engines"`
	Callbacks []string `koanf:"callbacks" mapstructure:"callbacks"`
}

func DefaultConfig() Config {
	return Config{
		Name:    "dispatcher",
		Profile: ProfileDevelopment,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("core: name is required")
	}
	switch normalizeProfile(c.Profile) {
	case ProfileProduction, ProfileDevelopment, ProfileTest:
	default:
		return fmt.Errorf("core: unknown profile %q", c.Profile)
	}
	return nil
}

func (c Config) IsProduction() bool {
	return normalizeProfile(c.Profile) == ProfileProduction
}

func normalizeProfile(profile string) string {
	return strings.TrimSpace(strings.ToLower(profile))
}
