// Package localcache is the local JSON fallback cache for zone and
// sensor info, used only when the control plane is unreachable at
// startup. Writes atomically: a .tmp file followed by os.Rename over
// the target.
package localcache

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/thatsimonsguy/heatcore/internal/model"
)

// Payload is the cached zone/sensor info.
type Payload struct {
	Zones   []model.Zone   `json:"zones"`
	Sensors []model.Sensor `json:"sensors"`
}

// Cache reads and writes Payload to a single JSON file.
type Cache struct {
	path string
}

// New builds a Cache rooted at path.
func New(path string) *Cache {
	return &Cache{path: path}
}

// Load reads the cached payload. Returns an error if the file does not
// exist or cannot be parsed.
func (c *Cache) Load() (Payload, error) {
	file, err := os.Open(c.path)
	if err != nil {
		return Payload{}, fmt.Errorf("failed to open zone info cache: %w", err)
	}
	defer file.Close()

	var payload Payload
	if err := json.NewDecoder(file).Decode(&payload); err != nil {
		return Payload{}, fmt.Errorf("failed to parse zone info cache: %w", err)
	}
	return payload, nil
}

// Save atomically writes the payload to the cache file.
func (c *Cache) Save(payload Payload) error {
	tmpPath := c.path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create zone info cache: %w", err)
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode zone info cache: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync zone info cache: %w", err)
	}
	file.Close()

	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("failed to install zone info cache: %w", err)
	}
	return nil
}

// ErrZoneInfoUnavailable is returned when both the control plane and the
// local cache fail to produce zone/sensor info; the caller (startup)
// treats this as fatal per §7.
type ErrZoneInfoUnavailable struct {
	Cause error
}

func (e *ErrZoneInfoUnavailable) Error() string {
	return fmt.Sprintf("zone info unavailable: no control-plane response and no usable cache: %v", e.Cause)
}

func (e *ErrZoneInfoUnavailable) Unwrap() error { return e.Cause }
