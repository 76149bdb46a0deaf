package eventreplay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aurora-is-near/stream-events/util"
)

const sizeResolution = 128

// State accumulates replay results and is persisted so a replay can resume.
type State struct {
	LastProcessedSeq uint64 `json:"last_processed_seq"`
	Messages         uint64 `json:"messages"`
	Gaps             uint64 `json:"gaps"`

	// program -> event name -> count
	Events map[string]map[string]uint64 `json:"events"`
	// program -> count of unrecognized discriminators
	Unknown map[string]uint64 `json:"unknown"`
	// program -> error kind -> count
	Errors map[string]map[string]uint64 `json:"errors"`
	// payload size bucket (bytes, rounded up) -> count
	SizeDistribution map[int]uint64 `json:"size_distribution"`
}

func NewState() *State {
	return &State{
		Events:           make(map[string]map[string]uint64),
		Unknown:          make(map[string]uint64),
		Errors:           make(map[string]map[string]uint64),
		SizeDistribution: make(map[int]uint64),
	}
}

func ReadStateOrEmpty(path string) (*State, error) {
	if len(path) == 0 {
		return NewState(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("unable to read file '%s': %w", path, err)
	}
	s := NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("unable to unmarshal state: %w", err)
	}
	return s, nil
}

func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal state: %w", err)
	}
	return util.WriteFileAtomically(path, data)
}

func (s *State) acknowledgeEvent(program, event string) {
	if s.Events[program] == nil {
		s.Events[program] = make(map[string]uint64)
	}
	s.Events[program][event]++
}

func (s *State) acknowledgeError(program, kind string) {
	if s.Errors[program] == nil {
		s.Errors[program] = make(map[string]uint64)
	}
	s.Errors[program][kind]++
}

func (s *State) acknowledgeSize(size int) {
	s.SizeDistribution[sizeBucket(size)]++
}

func sizeBucket(size int) int {
	n := size / sizeResolution
	if size%sizeResolution > 0 {
		n++
	}
	return n * sizeResolution
}
