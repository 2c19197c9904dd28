package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/beaconhq/beacon/pkg/ruleset"
)

// catalogEntryWire is the JSON-on-disk shape of a sensor catalog entry
// (spec §6, "Sensor catalog (JSON). Array of entries matching §3."),
// kept separate from ruleset.CatalogEntry so the domain type carries no
// serialization concerns and retain_last stays a surface duration
// literal until parsed.
type catalogEntryWire struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Type       string   `json:"type"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Units      string   `json:"units,omitempty"`
	RetainLast string   `json:"retain_last,omitempty"`
	Export     bool     `json:"export,omitempty"`
	Widget     string   `json:"widget,omitempty"`
}

// LoadFile reads a JSON sensor catalog from path and decodes it into the
// domain CatalogEntry slice NewCatalog/Resolve expect.
func LoadFile(path string) ([]ruleset.CatalogEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var wire []catalogEntryWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	entries := make([]ruleset.CatalogEntry, 0, len(wire))
	for _, w := range wire {
		entry := ruleset.CatalogEntry{
			ID:     w.ID,
			Kind:   ruleset.SensorKind(w.Kind),
			Type:   ruleset.SensorType(w.Type),
			Min:    w.Min,
			Max:    w.Max,
			Units:  w.Units,
			Export: w.Export,
			Widget: w.Widget,
		}
		if w.RetainLast != "" {
			ms, err := ruleset.ParseDuration(w.RetainLast)
			if err != nil {
				return nil, fmt.Errorf("sensor %q: %w", w.ID, err)
			}
			entry.RetainLast = ms
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
