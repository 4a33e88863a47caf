package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/jbweber/hearth/internal/reconcile"
	"github.com/jbweber/hearth/internal/vm"
)

// YAMLFormatter formats resources as YAML.
type YAMLFormatter struct{}

// FormatVMs formats VMs as a YAML stream, one document per VM.
func (f *YAMLFormatter) FormatVMs(vms []vm.VMView) (string, error) {
	var buf bytes.Buffer

	for i, v := range vms {
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal VM %s to YAML: %w", v.Name, err)
		}

		if i > 0 {
			buf.WriteString("---\n")
		}
		buf.Write(data)
	}

	return buf.String(), nil
}

// FormatGhosts formats ghost VMs as a single YAML sequence.
func (f *YAMLFormatter) FormatGhosts(ghosts []reconcile.GhostVM) (string, error) {
	if len(ghosts) == 0 {
		return "[]\n", nil
	}

	data, err := yaml.Marshal(ghosts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ghost VMs to YAML: %w", err)
	}
	return string(data), nil
}
