package cotrain

// State is a step of a self-training run.
type State int

const (
	StateNew State = iota
	StateInit
	StatePhase1Trained
	StatePseudoLabeled
	StatePhase3Trained
	StateEvaluated
	StatePersisted
	StateFailed
)

var stateNames = map[State]string{
	StateNew:           "NEW",
	StateInit:          "INIT",
	StatePhase1Trained: "PHASE1_TRAINED",
	StatePseudoLabeled: "PSEUDO_LABELED",
	StatePhase3Trained: "PHASE3_TRAINED",
	StateEvaluated:     "EVALUATED",
	StatePersisted:     "PERSISTED",
	StateFailed:        "FAILED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether no further steps can run from s.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}
