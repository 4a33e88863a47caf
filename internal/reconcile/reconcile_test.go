package reconcile

import (
	"errors"
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name       string
		hypervisor []string
		store      []string
		want       []string
	}{
		{
			name:       "one ghost",
			hypervisor: []string{"A", "B", "C"},
			store:      []string{"A", "B"},
			want:       []string{"C"},
		},
		{
			name:       "in sync",
			hypervisor: []string{"A", "B"},
			store:      []string{"B", "A"},
			want:       nil,
		},
		{
			name:       "store ahead is not reported",
			hypervisor: []string{"A"},
			store:      []string{"A", "B"},
			want:       nil,
		},
		{
			name:       "sorted and deduplicated",
			hypervisor: []string{"Z", "C", "Z", "A"},
			store:      []string{"A"},
			want:       []string{"C", "Z"},
		},
		{
			name:       "empty store",
			hypervisor: []string{"B", "A"},
			store:      nil,
			want:       []string{"A", "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.hypervisor, tt.store)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReport(t *testing.T) {
	lookup := func(id string) (string, string, error) {
		switch id {
		case "C":
			return "stray-vm", "RUNNING", nil
		case "D":
			return "", "", errors.New("domain not found")
		default:
			return "other", "SHUTOFF", nil
		}
	}

	got := Report([]string{"C", "D", "E"}, lookup, nil)
	want := []GhostVM{
		{UUID: "C", Name: "stray-vm", State: "RUNNING"},
		{UUID: "E", Name: "other", State: "SHUTOFF"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Report() = %+v, want %+v", got, want)
	}
}

func TestReport_Empty(t *testing.T) {
	got := Report(nil, func(string) (string, string, error) {
		t.Fatal("lookup should not be called")
		return "", "", nil
	}, nil)
	if got == nil || len(got) != 0 {
		t.Errorf("Report(nil) = %#v, want empty non-nil slice", got)
	}
}
