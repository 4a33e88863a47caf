// Package reconcile compares the hypervisor's domain inventory with the
// metadata store and reports domains the store has no record of.
//
// Only hypervisor-ahead drift is detected. A store row whose domain has
// vanished is not reported here; ListVMs surfaces it as state UNKNOWN.
package reconcile

import (
	"log/slog"
	"sort"
)

// GhostVM is a hypervisor domain with no matching metadata record.
type GhostVM struct {
	UUID  string `json:"uuid" yaml:"uuid"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
}

// LookupFunc fetches the name and live state of a domain by UUID.
type LookupFunc func(uuid string) (name, state string, err error)

// Diff returns the UUIDs present in hypervisor but absent from store,
// sorted and without duplicates.
func Diff(hypervisor, store []string) []string {
	known := make(map[string]struct{}, len(store))
	for _, id := range store {
		known[id] = struct{}{}
	}

	seen := make(map[string]struct{})
	var ghosts []string
	for _, id := range hypervisor {
		if _, ok := known[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ghosts = append(ghosts, id)
	}

	sort.Strings(ghosts)
	return ghosts
}

// Report resolves each ghost UUID into a GhostVM. UUIDs whose lookup fails
// are skipped and logged.
func Report(ghostUUIDs []string, lookup LookupFunc, logger *slog.Logger) []GhostVM {
	if logger == nil {
		logger = slog.Default()
	}

	report := make([]GhostVM, 0, len(ghostUUIDs))
	for _, id := range ghostUUIDs {
		name, state, err := lookup(id)
		if err != nil {
			logger.Warn("skipping ghost vm, lookup failed", "uuid", id, "error", err)
			continue
		}
		report = append(report, GhostVM{UUID: id, Name: name, State: state})
	}
	return report
}
