package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	goplugin "plugin"
	"strings"
)

// ProcessorPlugin is the shape a dynamically-loaded .so exports to register a
// processor: var Processors []plugin.ProcessorPlugin
type ProcessorPlugin struct {
	Name       string
	ParamNames []string
	Fn         Processor
}

// ConditionPlugin is the shape a .so exports to register a condition:
// var Conditions []plugin.ConditionPlugin
type ConditionPlugin struct {
	Name string
	Fn   Condition
}

// ModifierPlugin is the shape a .so exports to register a modifier:
// var Modifiers []plugin.ModifierPlugin
type ModifierPlugin struct {
	Name string
	Fn   Modifier
}

// LoadFromDir scans each directory in dirs for *.so files built with
// `go build -buildmode=plugin` and registers any exported Processors,
// Conditions, or Modifiers slices it finds. This is the genuinely dynamic,
// runtime directory-scanning counterpart to the compiled-in init()
// registrations; a directory that does not exist is skipped, not fatal.
func LoadFromDir(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("plugin: reading dir %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".so") {
				continue
			}
			if err := loadOne(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("plugin: loading %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}

func loadOne(path string) error {
	p, err := goplugin.Open(path)
	if err != nil {
		return err
	}

	if sym, err := p.Lookup("Processors"); err == nil {
		if procs, ok := sym.(*[]ProcessorPlugin); ok {
			for _, pp := range *procs {
				RegisterProcessor(pp.Name, pp.ParamNames, pp.Fn)
			}
		}
	}
	if sym, err := p.Lookup("Conditions"); err == nil {
		if conds, ok := sym.(*[]ConditionPlugin); ok {
			for _, cp := range *conds {
				RegisterCondition(cp.Name, cp.Fn)
			}
		}
	}
	if sym, err := p.Lookup("Modifiers"); err == nil {
		if mods, ok := sym.(*[]ModifierPlugin); ok {
			for _, mp := range *mods {
				RegisterModifier(mp.Name, mp.Fn)
			}
		}
	}
	return nil
}
