// Package plugin holds the three pluggable-component registries the mapping
// and extraction engines dispatch against by name: processors, conditions,
// and modifiers. Built-in implementations register themselves from init()
// via blank import, mirroring the teacher's tools.Register/toolRegistry
// pattern; LoadFromDir additionally loads genuinely dynamic implementations
// compiled as Go plugins.
package plugin

import (
	"fmt"
	"sync"
)

// Processor is a pure, variadic function invoked by name from a mapping
// template's processor-call reference.
type Processor func(args ...string) (any, error)

// Condition evaluates an atom parameter against a row field value.
type Condition func(param, value string) (bool, error)

// Modifier transforms a row field value given a parameter.
type Modifier func(param, value string) (string, error)

type processorEntry struct {
	fn         Processor
	paramNames []string
}

var (
	mu         sync.RWMutex
	processors = map[string]processorEntry{}
	conditions = map[string]Condition{}
	modifiers  = map[string]Modifier{}
)

// RegisterProcessor registers a processor under name along with its declared
// parameter names (used to align positional arguments at introspection time).
// Re-registering an existing name is a no-op, matching the teacher's
// tools.Register idempotency.
func RegisterProcessor(name string, paramNames []string, fn Processor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := processors[name]; exists {
		return
	}
	processors[name] = processorEntry{fn: fn, paramNames: paramNames}
}

// RegisterCondition registers a condition plugin under name.
func RegisterCondition(name string, fn Condition) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := conditions[name]; exists {
		return
	}
	conditions[name] = fn
}

// RegisterModifier registers a modifier plugin under name.
func RegisterModifier(name string, fn Modifier) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := modifiers[name]; exists {
		return
	}
	modifiers[name] = fn
}

// LookupProcessor returns the processor registered under name, its declared
// parameter names, and whether it was found.
func LookupProcessor(name string) (Processor, []string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	e, ok := processors[name]
	if !ok {
		return nil, nil, false
	}
	return e.fn, e.paramNames, true
}

// LookupCondition returns the condition registered under name.
func LookupCondition(name string) (Condition, bool) {
	mu.RLock()
	defer mu.RUnlock()
	c, ok := conditions[name]
	return c, ok
}

// LookupModifier returns the modifier registered under name.
func LookupModifier(name string) (Modifier, bool) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := modifiers[name]
	return m, ok
}

// Names reports the registered plugin names per kind, for the operational
// status endpoint.
func Names() map[string][]string {
	mu.RLock()
	defer mu.RUnlock()
	out := map[string][]string{
		"processors": make([]string, 0, len(processors)),
		"conditions": make([]string, 0, len(conditions)),
		"modifiers":  make([]string, 0, len(modifiers)),
	}
	for n := range processors {
		out["processors"] = append(out["processors"], n)
	}
	for n := range conditions {
		out["conditions"] = append(out["conditions"], n)
	}
	for n := range modifiers {
		out["modifiers"] = append(out["modifiers"], n)
	}
	return out
}

// ErrNotRegistered is a plain sentinel for a missing registration, kept free
// of a dependency on cdserr. The Lookup functions report absence through
// their bool result and do not return it; callers build their own
// cdserr.Kind errors instead.
var ErrNotRegistered = fmt.Errorf("plugin: not registered")
