package config

import (
	"fmt"
	"strings"

	"github.com/xplshn/jackc/pkg/cli"
)

type Feature int

const (
	FeatBootstrap Feature = iota
	FeatComments
	FeatStrictThis
	FeatTyped
	FeatCount
)

type Warning int

const (
	WarnUnusedVar Warning = iota
	WarnShadow
	WarnImplicitThis
	WarnCallArity
	WarnCallKind
	WarnReturn
	WarnUnknownSub
	WarnUnknownType
	WarnClassName
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Hack platform constants.
const (
	StackBase   = 256
	VarBase     = 16
	TempBase    = 5
	TempSize    = 8
	MaxAddress  = 32767
	ScreenBase  = 16384
	KbdAddress  = 24576
	DefaultMain = "Sys.init"
)

type Config struct {
	Features   map[Feature]Info
	Warnings   map[Warning]Info
	FeatureMap map[string]Feature
	WarningMap map[string]Warning
	// Entry is the function the bootstrap code calls.
	Entry string
}

func NewConfig() *Config {
	cfg := &Config{
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Entry:      DefaultMain,
	}

	features := map[Feature]Info{
		FeatBootstrap:  {"bootstrap", true, "Emit the SP=256 / call Sys.init startup sequence."},
		FeatComments:   {"comments", true, "Annotate generated assembly with the VM command it came from."},
		FeatStrictThis: {"strict-this", false, "Reject 'this' and implicit method calls inside functions."},
		FeatTyped:      {"typecheck", true, "Check calls, returns and type names across all classes of a program."},
	}

	warnings := map[Warning]Info{
		WarnUnusedVar:    {"unused-var", true, "Warn about local variables that are never referenced."},
		WarnShadow:       {"shadow", false, "Warn when a parameter or local hides a field or static."},
		WarnImplicitThis: {"implicit-this", true, "Warn about 'this' or implicit method calls inside functions."},
		WarnCallArity:    {"call-arity", true, "Warn about calls passing the wrong number of arguments."},
		WarnCallKind:     {"call-kind", true, "Warn about methods called without an object and functions called on one."},
		WarnReturn:       {"return", true, "Warn about returns that do not match the declared return type."},
		WarnUnknownSub:   {"unknown-subroutine", true, "Warn about calls to subroutines a known class does not declare."},
		WarnUnknownType:  {"unknown-type", false, "Warn about type names that are neither primitive nor a known class."},
		WarnClassName:    {"class-name", true, "Warn when a class is declared in a file of a different name."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}
	return cfg
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyFlag understands -Wname, -Wno-name, -Wall, -Wno-all, -Fname and -Fno-name.
func (c *Config) ApplyFlag(flag string) error {
	trimmed := strings.TrimPrefix(flag, "-")
	if len(trimmed) < 2 || (trimmed[0] != 'W' && trimmed[0] != 'F') {
		return fmt.Errorf("unrecognized flag '%s'", flag)
	}
	isWarning := trimmed[0] == 'W'
	name := trimmed[1:]
	enable := !strings.HasPrefix(name, "no-")
	name = strings.TrimPrefix(name, "no-")

	if isWarning && name == "all" {
		for i := Warning(0); i < WarnCount; i++ {
			c.SetWarning(i, enable)
		}
		return nil
	}
	if isWarning {
		w, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(w, enable)
		return nil
	}
	f, ok := c.FeatureMap[name]
	if !ok {
		return fmt.Errorf("unknown feature '%s'", name)
	}
	c.SetFeature(f, enable)
	return nil
}

// SetupFlagGroups registers one -W/-F pair per warning and feature. The returned
// slices are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	var warningFlags, featureFlags []cli.FlagGroupEntry

	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		enabled, disabled := false, false
		warningFlags = append(warningFlags, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled, Default: info.Enabled,
		})
	}
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		enabled, disabled := false, false
		featureFlags = append(featureFlags, cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: &enabled, Disabled: &disabled, Default: info.Enabled,
		})
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable toolchain features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies explicit command-line choices into the config.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

// WarningName returns the flag spelling of wt.
func (c *Config) WarningName(wt Warning) string { return c.Warnings[wt].Name }
