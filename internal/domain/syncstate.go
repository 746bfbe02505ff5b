package domain

// SyncPhase is the sync manager's position in its state machine.
type SyncPhase string

const (
	SyncIdle      SyncPhase = "idle"
	SyncScheduled SyncPhase = "scheduled"
	SyncSyncing   SyncPhase = "syncing"
	SyncError     SyncPhase = "error"
)

func (p SyncPhase) String() string { return string(p) }

func (p SyncPhase) IsValid() bool {
	switch p {
	case SyncIdle, SyncScheduled, SyncSyncing, SyncError:
		return true
	}
	return false
}

// SyncState is the persisted sync manager state, written to durable storage
// on every phase transition and re-hydrated at startup.
type SyncState struct {
	Phase SyncPhase `json:"state"`
}
