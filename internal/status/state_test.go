package status

import (
	"testing"

	"github.com/matheus3301/chatsync/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
	if m.Active() {
		t.Error("Active() = true in IDLE")
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		path []State
	}{
		{[]State{Connecting, Open}},
		{[]State{Connecting, Open, Reconnecting, Connecting, Open}},
		{[]State{Connecting, Idle}},
		{[]State{Connecting, Reconnecting, Idle}},
		{[]State{Connecting, Open, Idle, Connecting}},
	}
	for _, tt := range tests {
		m := NewMachine(nil)
		for _, to := range tt.path {
			if err := m.Transition(to); err != nil {
				t.Fatalf("path %v: %v", tt.path, err)
			}
		}
		if got, want := m.Current(), tt.path[len(tt.path)-1]; got != want {
			t.Errorf("path %v ended in %s, want %s", tt.path, got, want)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		walk []State
		to   State
	}{
		{"idle to open", nil, Open},
		{"idle to reconnecting", nil, Reconnecting},
		{"open to connecting", []State{Connecting, Open}, Connecting},
		{"reconnecting to open", []State{Connecting, Reconnecting}, Open},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(nil)
			for _, s := range tt.walk {
				if err := m.Transition(s); err != nil {
					t.Fatal(err)
				}
			}
			if err := m.Transition(tt.to); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", m.Current(), tt.to)
			}
		})
	}
}

func TestSelfTransitionIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("realtime.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Idle); err != nil {
		t.Fatalf("Transition(IDLE -> IDLE) error = %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %v for self transition", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("realtime.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Connecting); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != KindChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, KindChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Connecting {
		t.Errorf("change = %v -> %v, want IDLE -> CONNECTING", change.From, change.To)
	}
}
