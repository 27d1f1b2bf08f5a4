package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// RouterManifest is the declarative description of a router resource
// submitted via `vortexctl apply`.
type RouterManifest struct {
	APIVersion string             `yaml:"api_version"`
	Kind       string             `yaml:"kind"`
	Metadata   RouterMetadata     `yaml:"metadata"`
	Spec       RouterManifestSpec `yaml:"spec"`
}

// RouterMetadata names the resource and the tenant that owns it.
type RouterMetadata struct {
	Name     string `yaml:"name"`
	TenantID string `yaml:"tenant_id"`
}

// RouterManifestSpec carries the per-router thresholds and the image
// used to construct its appliance.
type RouterManifestSpec struct {
	RebootErrorThreshold  int    `yaml:"reboot_error_threshold"`
	QueueWarningThreshold int    `yaml:"queue_warning_threshold"`
	Image                 string `yaml:"image"`
	Flavor                string `yaml:"flavor"`
}

const routerKind = "Router"

// ParseRouterManifest decodes and validates one YAML Router manifest.
func ParseRouterManifest(data []byte) (*RouterManifest, error) {
	var m RouterManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse router manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest carries the fields an Automaton needs to
// be constructed.
func (m *RouterManifest) Validate() error {
	if m.Kind != routerKind {
		return fmt.Errorf("unsupported manifest kind %q, want %q", m.Kind, routerKind)
	}
	if m.Metadata.Name == "" {
		return fmt.Errorf("metadata.name is required")
	}
	if m.Metadata.TenantID == "" {
		return fmt.Errorf("metadata.tenant_id is required")
	}
	if m.Spec.Image == "" {
		return fmt.Errorf("spec.image is required")
	}
	if m.Spec.RebootErrorThreshold <= 0 {
		m.Spec.RebootErrorThreshold = 5
	}
	if m.Spec.QueueWarningThreshold <= 0 {
		m.Spec.QueueWarningThreshold = 10
	}
	return nil
}
