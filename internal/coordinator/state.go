package coordinator

import (
	"fmt"

	"github.com/0x6d61/sentinel/pkg/schema"
)

// transitions はラン状態の許可された遷移。
// IDLE → RUNNING → 終端状態 の一方向のみで、終端からの遷移は存在しない。
var transitions = map[schema.RunState][]schema.RunState{
	schema.StateIdle: {schema.StateRunning},
	schema.StateRunning: {
		schema.StateSuccess,
		schema.StateFailed,
		schema.StateTimeout,
		schema.StateCancelled,
	},
}

// runState は 1 ランの状態を遷移規則つきで保持する。
type runState struct {
	current schema.RunState
}

func newRunState() *runState {
	return &runState{current: schema.StateIdle}
}

func (s *runState) get() schema.RunState { return s.current }

// advance は状態を遷移させる。許可されない遷移はエラー。
func (s *runState) advance(to schema.RunState) error {
	for _, next := range transitions[s.current] {
		if next == to {
			s.current = to
			return nil
		}
	}
	return fmt.Errorf("coordinator: invalid state transition %s -> %s", s.current, to)
}
