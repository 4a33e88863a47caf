package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jbweber/hearth/internal/reconcile"
	"github.com/jbweber/hearth/internal/vm"
)

// TableFormatter formats resources as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool

	now func() time.Time
}

// FormatVMs formats VMs as a table.
func (f *TableFormatter) FormatVMs(vms []vm.VMView) (string, error) {
	if len(vms) == 0 {
		return "No VMs found\n", nil
	}

	now := time.Now()
	if f.now != nil {
		now = f.now()
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tSTATE\tUUID\tVCPUs\tMEMORY\tAGE")
	}

	for _, v := range vms {
		state := v.State
		if state == "" {
			state = "-"
		}

		age := "-"
		if !v.CreatedAt.IsZero() {
			age = formatAge(now.Sub(v.CreatedAt))
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d MiB\t%s\n",
			v.Name, state, v.UUID, v.CPUCount, v.RAMMB, age)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatGhosts formats ghost VMs as a table.
func (f *TableFormatter) FormatGhosts(ghosts []reconcile.GhostVM) (string, error) {
	if len(ghosts) == 0 {
		return "No ghost VMs found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "UUID\tNAME\tSTATE")
	}
	for _, g := range ghosts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", g.UUID, g.Name, g.State)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// formatAge formats a duration as a short age string.
// Examples: "5s", "2m", "3h", "4d", "2w", "1y"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	if years := days / 365; years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
