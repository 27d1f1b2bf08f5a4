package config

import "testing"

const validManifest = `
api_version: v1
kind: Router
metadata:
  name: router-7f3a
  tenant_id: tenant-acme
spec:
  reboot_error_threshold: 5
  queue_warning_threshold: 10
  image: vortex/router:latest
  flavor: small
`

func TestParseRouterManifestValid(t *testing.T) {
	m, err := ParseRouterManifest([]byte(validManifest))
	if err != nil {
		t.Fatalf("ParseRouterManifest failed: %v", err)
	}
	if m.Metadata.Name != "router-7f3a" || m.Metadata.TenantID != "tenant-acme" {
		t.Fatalf("unexpected metadata: %+v", m.Metadata)
	}
	if m.Spec.Image != "vortex/router:latest" {
		t.Fatalf("Spec.Image = %q", m.Spec.Image)
	}
}

func TestParseRouterManifestRejectsWrongKind(t *testing.T) {
	_, err := ParseRouterManifest([]byte(`
kind: Widget
metadata:
  name: x
  tenant_id: y
spec:
  image: z
`))
	if err == nil {
		t.Fatal("expected an error for a non-Router kind")
	}
}

func TestParseRouterManifestDefaultsThresholds(t *testing.T) {
	m, err := ParseRouterManifest([]byte(`
kind: Router
metadata:
  name: router-1
  tenant_id: tenant-1
spec:
  image: vortex/router:latest
`))
	if err != nil {
		t.Fatalf("ParseRouterManifest failed: %v", err)
	}
	if m.Spec.RebootErrorThreshold != 5 {
		t.Fatalf("RebootErrorThreshold = %d, want default 5", m.Spec.RebootErrorThreshold)
	}
	if m.Spec.QueueWarningThreshold != 10 {
		t.Fatalf("QueueWarningThreshold = %d, want default 10", m.Spec.QueueWarningThreshold)
	}
}

func TestParseRouterManifestRequiresTenant(t *testing.T) {
	_, err := ParseRouterManifest([]byte(`
kind: Router
metadata:
  name: router-1
spec:
  image: vortex/router:latest
`))
	if err == nil {
		t.Fatal("expected an error for a missing tenant_id")
	}
}
