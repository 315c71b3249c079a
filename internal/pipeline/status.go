package pipeline

import (
	"context"
	"fmt"

	"journey-risk-api-server/internal/models"

	"github.com/looplab/fsm"
)

// Route status events.
const (
	EventComplete   = "complete"
	EventFail       = "fail"
	EventRegenerate = "regenerate"
)

func newRouteFSM(current string) *fsm.FSM {
	return fsm.NewFSM(
		current,
		fsm.Events{
			{Name: EventComplete, Src: []string{models.RouteStatusProcessing}, Dst: models.RouteStatusCompleted},
			{Name: EventFail, Src: []string{models.RouteStatusProcessing}, Dst: models.RouteStatusFailed},
			{Name: EventRegenerate, Src: []string{
				models.RouteStatusProcessing, models.RouteStatusCompleted, models.RouteStatusFailed,
			}, Dst: models.RouteStatusProcessing},
		},
		fsm.Callbacks{},
	)
}

// NextStatus returns the status event moves a route to from current.
// Completed and failed are terminal except for regenerate.
func NextStatus(current, event string) (string, error) {
	m := newRouteFSM(current)
	if err := m.Event(context.Background(), event); err != nil {
		if _, ok := err.(fsm.NoTransitionError); ok {
			return m.Current(), nil
		}
		return "", fmt.Errorf("route status %s on %s: %w", current, event, err)
	}
	return m.Current(), nil
}
