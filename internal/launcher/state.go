package launcher

// State is a step of the launcher lifecycle. States only move forward.
type State int

const (
	StateNotStarted State = iota
	StateDependenciesChecked
	StateGenerationServerStarted
	StateAssetServerStarted
	StateBrowserOpened
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateDependenciesChecked:
		return "dependencies checked"
	case StateGenerationServerStarted:
		return "generation server started"
	case StateAssetServerStarted:
		return "asset server started"
	case StateBrowserOpened:
		return "browser opened"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
