package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/beaconhq/beacon/internal/catalog"
	"github.com/beaconhq/beacon/internal/compiler"
	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/diag"
	"github.com/beaconhq/beacon/internal/ir"
	"github.com/beaconhq/beacon/internal/manifest"
	"github.com/beaconhq/beacon/internal/observability"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/pkg/ruleset"
)

// levelFromFlag maps the --validation-level surface flag to the internal
// schema.Level enum, defaulting to normal when unset.
func levelFromFlag(flag string) (schema.Level, error) {
	switch flag {
	case "", "normal":
		return schema.LevelNormal, nil
	case "strict":
		return schema.LevelStrict, nil
	case "relaxed":
		return schema.LevelRelaxed, nil
	default:
		return "", fmt.Errorf("unknown validation level %q (want strict|normal|relaxed)", flag)
	}
}

// loadConfig loads the system config (spec §6), falling back to defaults
// when configPath is empty.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	observability.SetDebug(cfg.LogLevel == "debug")
	return cfg, nil
}

// loadCatalogEntries reads the sensor catalog from catalogPath, or falls
// back to a bare catalog built from cfg.ValidSensors, in which every listed
// sensor is a physical sensor of type number.
func loadCatalogEntries(catalogPath string, cfg *config.Config) ([]ruleset.CatalogEntry, error) {
	if catalogPath != "" {
		entries, err := catalog.LoadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return entries, nil
	}

	entries := make([]ruleset.CatalogEntry, 0, len(cfg.ValidSensors))
	for _, id := range cfg.ValidSensors {
		entries = append(entries, ruleset.CatalogEntry{ID: id, Kind: ruleset.SensorPhysical, Type: ruleset.TypeNumber})
	}
	return entries, nil
}

func compileRules(rulesPath, configPath, catalogPath, validationLevel string) (*ir.Program, *config.Config, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	level, err := levelFromFlag(validationLevel)
	if err != nil {
		return nil, nil, err
	}

	entries, err := loadCatalogEntries(catalogPath, cfg)
	if err != nil {
		return nil, nil, err
	}

	yamlText, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read rules file: %w", err)
	}

	opts := compiler.DefaultOptions()
	opts.ValidationLevel = level
	opts.MaxDependencyDepth = cfg.MaxDependencyDepth

	program, diags := compiler.Compile(yamlText, rulesPath, entries, opts)
	printDiagnostics(diags)
	if diags.HasErrors() {
		return nil, cfg, fmt.Errorf("compilation failed with %d error(s)", len(diags.Errors()))
	}

	return program, cfg, nil
}

// roundtripManifest implements the load -> validate -> lower -> emit
// manifest -> re-parse manifest -> structural-equality check spec §8
// property 1 calls for (SPEC_FULL.md §C, "Manifest re-parse / round-trip
// checking"): the manifest built from program must survive a JSON
// marshal/unmarshal cycle byte-for-structure unchanged. A mismatch here
// means the manifest's own shape has hidden nondeterminism or a field
// that doesn't round-trip through JSON (e.g. a type losing precision),
// not that the rule set itself is wrong.
func roundtripManifest(program *ir.Program) error {
	original := manifest.Build(program, time.Time{})

	data, err := json.Marshal(original)
	if err != nil {
		return fmt.Errorf("roundtrip: marshal manifest: %w", err)
	}

	var reparsed manifest.Manifest
	if err := json.Unmarshal(data, &reparsed); err != nil {
		return fmt.Errorf("roundtrip: re-parse manifest: %w", err)
	}

	if !reflect.DeepEqual(original, reparsed) {
		return fmt.Errorf("roundtrip: re-parsed manifest does not structurally equal the emitted one")
	}
	return nil
}

func printDiagnostics(diags *diag.Diagnostics) {
	if diags == nil {
		return
	}
	for _, d := range diags.Errors() {
		fmt.Fprintf(os.Stderr, "error: %s\n", d.Error())
	}
	for _, d := range diags.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d.Error())
	}
}
