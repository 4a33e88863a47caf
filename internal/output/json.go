package output

import (
	"encoding/json"
	"fmt"

	"github.com/jbweber/hearth/internal/reconcile"
	"github.com/jbweber/hearth/internal/vm"
)

// JSONFormatter formats resources as indented JSON.
type JSONFormatter struct{}

// FormatVMs formats VMs as a JSON array. An empty listing is "[]".
func (f *JSONFormatter) FormatVMs(vms []vm.VMView) (string, error) {
	if vms == nil {
		vms = []vm.VMView{}
	}
	return marshalJSON(vms)
}

// FormatGhosts formats ghost VMs as a JSON array.
func (f *JSONFormatter) FormatGhosts(ghosts []reconcile.GhostVM) (string, error) {
	if ghosts == nil {
		ghosts = []reconcile.GhostVM{}
	}
	return marshalJSON(ghosts)
}

func marshalJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data) + "\n", nil
}
