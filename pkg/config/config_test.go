package config

import (
	"testing"

	"github.com/xplshn/jackc/pkg/cli"
)

func TestApplyFlag(t *testing.T) {
	tests := []struct {
		flag    string
		check   func(*Config) bool
		wantErr bool
	}{
		{"-Wno-unused-var", func(c *Config) bool { return !c.IsWarningEnabled(WarnUnusedVar) }, false},
		{"-Wshadow", func(c *Config) bool { return c.IsWarningEnabled(WarnShadow) }, false},
		{"-Fno-bootstrap", func(c *Config) bool { return !c.IsFeatureEnabled(FeatBootstrap) }, false},
		{"-Fstrict-this", func(c *Config) bool { return c.IsFeatureEnabled(FeatStrictThis) }, false},
		{"-Wall", func(c *Config) bool {
			return c.IsWarningEnabled(WarnShadow) && c.IsWarningEnabled(WarnUnusedVar) && c.IsWarningEnabled(WarnImplicitThis)
		}, false},
		{"-Wno-all", func(c *Config) bool { return !c.IsWarningEnabled(WarnImplicitThis) }, false},
		{"-Wbogus", nil, true},
		{"-Fbogus", nil, true},
		{"-x", nil, true},
	}
	for _, tc := range tests {
		cfg := NewConfig()
		err := cfg.ApplyFlag(tc.flag)
		if (err != nil) != tc.wantErr {
			t.Errorf("ApplyFlag(%q) error = %v; wantErr %v", tc.flag, err, tc.wantErr)
			continue
		}
		if tc.check != nil && !tc.check(cfg) {
			t.Errorf("ApplyFlag(%q) did not take effect", tc.flag)
		}
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	if cfg.Entry != "Sys.init" {
		t.Errorf("Entry = %q; want Sys.init", cfg.Entry)
	}
	if !cfg.IsFeatureEnabled(FeatBootstrap) || !cfg.IsFeatureEnabled(FeatComments) {
		t.Errorf("bootstrap and comments should default on")
	}
	if cfg.IsFeatureEnabled(FeatStrictThis) {
		t.Errorf("strict-this should default off")
	}
	if len(cfg.FeatureMap) != int(FeatCount) || len(cfg.WarningMap) != int(WarnCount) {
		t.Errorf("name maps incomplete: %d features, %d warnings", len(cfg.FeatureMap), len(cfg.WarningMap))
	}
}

func TestFlagGroupsRoundTrip(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("test")
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)
	if err := fs.Parse([]string{"-Wshadow", "-Fno-comments", "in.jack"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg.ApplyFlagGroups(warningFlags, featureFlags)
	if !cfg.IsWarningEnabled(WarnShadow) {
		t.Errorf("-Wshadow not applied")
	}
	if cfg.IsFeatureEnabled(FeatComments) {
		t.Errorf("-Fno-comments not applied")
	}
	if got := fs.Args(); len(got) != 1 || got[0] != "in.jack" {
		t.Errorf("Args() = %v; want [in.jack]", got)
	}
}
