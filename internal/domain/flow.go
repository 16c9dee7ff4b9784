package domain

// Stage is a state of the per-upload orchestration flow
type Stage int

const (
	StageIdle Stage = iota
	StageDescribing
	StageRejected
	StageGenerating
	StageStreaming
	StageDone
	StageCancelled
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageDescribing:
		return "describing"
	case StageRejected:
		return "rejected"
	case StageGenerating:
		return "generating"
	case StageStreaming:
		return "streaming"
	case StageDone:
		return "done"
	case StageCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// SlotSet holds one output per configured generation prompt; "" marks an empty slot
type SlotSet []string

// Clone returns a copy safe to hand to another goroutine
func (s SlotSet) Clone() SlotSet {
	out := make(SlotSet, len(s))
	copy(out, s)
	return out
}

// Update is a single emission of the orchestration flow
type Update struct {
	Stage Stage
	Slots SlotSet
	// Index is the slot filled by this update, -1 when no slot changed
	Index int
}
