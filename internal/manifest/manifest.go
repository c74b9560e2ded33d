// Package manifest records a run's reproducibility manifest: a sha256
// hash of the resolved config plus a uuid run ID, grounded on
// Mrhb33-backtest's engine.ConfigManager/ReproducibleManifest. Written
// alongside summary.json as manifest.json (SPEC_FULL.md §2).
package manifest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vnbacktest/internal/config"
)

// Manifest is the manifest.json sidecar spec.md's persisted outputs are
// supplemented with, so two runs can be compared for config drift
// without diffing flags by hand.
type Manifest struct {
	RunID      string        `json:"run_id"`
	ConfigHash string        `json:"config_hash"`
	Config     config.Config `json:"config"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Universe   []string      `json:"universe"`
	CreatedAt  time.Time     `json:"created_at"`
}

// New hashes cfg's canonical JSON form and stamps a fresh run ID.
func New(cfg config.Config, from, to string, universe []string, createdAt time.Time) (Manifest, error) {
	hash, err := hashConfig(cfg)
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{
		RunID:      uuid.NewString(),
		ConfigHash: hash,
		Config:     cfg,
		From:       from,
		To:         to,
		Universe:   universe,
		CreatedAt:  createdAt,
	}, nil
}

func hashConfig(cfg config.Config) (string, error) {
	bytes, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config for hashing: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(bytes)), nil
}

// ToJSON renders the manifest as indented JSON for manifest.json.
func (m Manifest) ToJSON() ([]byte, error) {
	bytes, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return bytes, nil
}
