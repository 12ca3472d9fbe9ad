package lifecycle

import (
	"math"
	"testing"

	"github.com/ayusman/kinetic/internal/frame"
	"github.com/ayusman/kinetic/internal/grid"
	"github.com/ayusman/kinetic/internal/intent"
)

func key(id string) intent.InstanceKey {
	return intent.InstanceKey{IntentID: id, Selector: "right"}
}

func TestApply_StartThenUpdateThenEnd(t *testing.T) {
	e := New(grid.Default(), nil)

	startEvents := e.Apply(0,
		[]StartDecision{{Key: key("g"), Hand: frame.Right, HandIndex: 0, Position: frame.Point3D{X: 0.5, Y: 0.5}}},
		nil, nil)
	if len(startEvents) != 1 || startEvents[0].Phase != intent.PhaseStart {
		t.Fatalf("events = %+v, want a single Start", startEvents)
	}
	instanceID := startEvents[0].InstanceID

	updateEvents := e.Apply(100,
		nil,
		[]ContinueDecision{{Key: key("g"), Position: frame.Point3D{X: 0.6, Y: 0.5}, Matched: true}},
		nil)
	if len(updateEvents) != 1 || updateEvents[0].Phase != intent.PhaseUpdate {
		t.Fatalf("events = %+v, want a single Update", updateEvents)
	}
	if updateEvents[0].InstanceID != instanceID {
		t.Errorf("InstanceID changed across Update: %q vs %q", updateEvents[0].InstanceID, instanceID)
	}
	// 0.1 / 0.1s; 0.6-0.5 is not exact in float64, so X is compared within 1e-9.
	wantVel := frame.Vec3{X: 1.0, Y: 0, Z: 0}
	gotVel := updateEvents[0].Velocity
	if math.Abs(gotVel.X-wantVel.X) > 1e-9 || gotVel.Y != wantVel.Y || gotVel.Z != wantVel.Z {
		t.Errorf("Velocity = %+v, want %+v", gotVel, wantVel)
	}
	if updateEvents[0].DurationMs != 100 {
		t.Errorf("DurationMs = %d, want 100", updateEvents[0].DurationMs)
	}

	endEvents := e.Apply(200, nil, nil, []EndDecision{{Key: key("g"), Reason: intent.ReasonPatternLost}})
	if len(endEvents) != 1 || endEvents[0].Phase != intent.PhaseEnd {
		t.Fatalf("events = %+v, want a single End", endEvents)
	}
	if endEvents[0].Reason != intent.ReasonPatternLost {
		t.Errorf("Reason = %v, want pattern_lost", endEvents[0].Reason)
	}
	if endEvents[0].DurationMs != 200 {
		t.Errorf("DurationMs = %d, want 200", endEvents[0].DurationMs)
	}
	if len(e.ActiveInstances()) != 0 {
		t.Errorf("ActiveInstances() not empty after End")
	}
}

func TestApply_OrderIsEndsThenStartsThenUpdates(t *testing.T) {
	e := New(grid.Default(), nil)
	e.Apply(0, []StartDecision{{Key: key("a"), Hand: frame.Right, Position: frame.Point3D{}}}, nil, nil)
	e.Apply(0, []StartDecision{{Key: key("b"), Hand: frame.Right, Position: frame.Point3D{}}}, nil, nil)

	events := e.Apply(100,
		[]StartDecision{{Key: key("c"), Hand: frame.Right, Position: frame.Point3D{}}},
		[]ContinueDecision{{Key: key("b"), Position: frame.Point3D{}, Matched: true}},
		[]EndDecision{{Key: key("a"), Reason: intent.ReasonSuperseded}},
	)

	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].Phase != intent.PhaseEnd {
		t.Errorf("events[0].Phase = %v, want End", events[0].Phase)
	}
	if events[1].Phase != intent.PhaseStart {
		t.Errorf("events[1].Phase = %v, want Start", events[1].Phase)
	}
	if events[2].Phase != intent.PhaseUpdate {
		t.Errorf("events[2].Phase = %v, want Update", events[2].Phase)
	}
}

func TestApply_VelocityZeroWhenTimestampDidNotAdvance(t *testing.T) {
	e := New(grid.Default(), nil)
	e.Apply(0, []StartDecision{{Key: key("g"), Hand: frame.Right, Position: frame.Point3D{X: 0.1}}}, nil, nil)

	events := e.Apply(0, nil, []ContinueDecision{{Key: key("g"), Position: frame.Point3D{X: 0.9}, Matched: true}}, nil)
	if events[0].Velocity != (frame.Vec3{}) {
		t.Errorf("Velocity = %+v, want zero when now == prev timestamp", events[0].Velocity)
	}
}

func TestApply_ContinueWithoutMatchKeepsLastPosition(t *testing.T) {
	e := New(grid.Default(), nil)
	e.Apply(0, []StartDecision{{Key: key("g"), Hand: frame.Right, Position: frame.Point3D{X: 0.3, Y: 0.3}}}, nil, nil)

	events := e.Apply(100, nil, []ContinueDecision{{Key: key("g"), Matched: false}}, nil)
	if events[0].Position != (frame.Point3D{X: 0.3, Y: 0.3}) {
		t.Errorf("Position = %+v, want unchanged last position during a tolerated gap", events[0].Position)
	}
}

func TestClear_EndsAllWithClearedReason(t *testing.T) {
	e := New(grid.Default(), nil)
	e.Apply(0, []StartDecision{{Key: key("a"), Hand: frame.Right, Position: frame.Point3D{}}}, nil, nil)
	e.Apply(0, []StartDecision{{Key: key("b"), Hand: frame.Left, Position: frame.Point3D{}}}, nil, nil)

	events := e.Clear(100, nil)
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	for _, ev := range events {
		if ev.Phase != intent.PhaseEnd || ev.Reason != intent.ReasonCleared {
			t.Errorf("event = %+v, want End/cleared", ev)
		}
	}
	if len(e.ActiveInstances()) != 0 {
		t.Error("ActiveInstances() not empty after Clear")
	}
}

func TestApply_CellsPopulatedPerActiveResolution(t *testing.T) {
	e := New(grid.Default(), nil)
	events := e.Apply(0, []StartDecision{{Key: key("g"), Hand: frame.Right, Position: frame.Point3D{X: 0.9, Y: 0.9}}}, nil, nil)
	if len(events[0].Cells) != len(grid.Default()) {
		t.Fatalf("len(Cells) = %d, want %d", len(events[0].Cells), len(grid.Default()))
	}
}
