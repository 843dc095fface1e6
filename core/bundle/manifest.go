// Package bundle packs anchor sets into portable archives. A bundle is a
// tar archive, xz-compressed by default, holding a manifest.json followed
// by one selector JSON file per anchor. Bundles move anchors between
// machines without assuming anything about the store on the other side.
package bundle

import (
	"encoding/json"
	"time"
)

// Version is the current bundle format version.
const Version = "1.0.0"

// manifestName is the first entry of every bundle archive.
const manifestName = "manifest.json"

// Manifest describes a bundle's contents (manifest.json).
type Manifest struct {
	BundleVersion string   `json:"bundle_version"`
	CreatedAt     string   `json:"created_at"`
	Tool          ToolInfo `json:"tool"`
	Anchors       []Entry  `json:"anchors"`
}

// ToolInfo names the tool that wrote the bundle.
type ToolInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry indexes one anchor in the archive.
type Entry struct {
	ID          string `json:"id"`
	Fingerprint string `json:"fingerprint"`
	Path        string `json:"path"`
}

// NewManifest creates an empty manifest stamped with the current time.
func NewManifest() *Manifest {
	return &Manifest{
		BundleVersion: Version,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		Tool: ToolInfo{
			Name:    "driftanchor",
			Version: Version,
		},
	}
}

// ToJSON serializes the manifest to JSON.
func (m *Manifest) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest parses a manifest from JSON.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
