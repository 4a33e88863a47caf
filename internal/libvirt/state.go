package libvirt

import "github.com/digitalocean/go-libvirt"

// DomainState is the live state of a domain as reported to API clients.
type DomainState string

const (
	StateNoState   DomainState = "NOSTATE"
	StateRunning   DomainState = "RUNNING"
	StateBlocked   DomainState = "BLOCKED"
	StatePaused    DomainState = "PAUSED"
	StateShutdown  DomainState = "SHUTDOWN"
	StateShutoff   DomainState = "SHUTOFF"
	StateCrashed   DomainState = "CRASHED"
	StateSuspended DomainState = "SUSPENDED"
	StateUnknown   DomainState = "UNKNOWN"
)

// StateFromCode maps a libvirt virDomainState code to a DomainState.
// Codes outside the known range map to StateUnknown.
func StateFromCode(code int32) DomainState {
	switch libvirt.DomainState(code) {
	case libvirt.DomainNostate:
		return StateNoState
	case libvirt.DomainRunning:
		return StateRunning
	case libvirt.DomainBlocked:
		return StateBlocked
	case libvirt.DomainPaused:
		return StatePaused
	case libvirt.DomainShutdown:
		return StateShutdown
	case libvirt.DomainShutoff:
		return StateShutoff
	case libvirt.DomainCrashed:
		return StateCrashed
	case libvirt.DomainPmsuspended:
		return StateSuspended
	default:
		return StateUnknown
	}
}

func (s DomainState) String() string {
	return string(s)
}
