package lookup

// Stage is a state of a single lookup.
//
//	Idle -> FetchingMetadata -> FetchingImage -> Done
//	           \                   \
//	            +--------> Errored <+
type Stage int

const (
	StageIdle Stage = iota
	StageFetchingMetadata
	StageFetchingImage
	StageDone
	StageErrored
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageFetchingMetadata:
		return "fetching_metadata"
	case StageFetchingImage:
		return "fetching_image"
	case StageDone:
		return "done"
	case StageErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageErrored
}

// Observer is notified of every stage a lookup enters, in order. It is called
// synchronously from the lookup goroutine and must not block.
type Observer func(barcode string, stage Stage)
