package requests

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/odyssey-erp/payables/internal/rbac"
	"github.com/odyssey-erp/payables/internal/shared"
)

// Event triggers a transition.
type Event string

const (
	EventSubmit   Event = "submit"
	EventUpdate   Event = "update"
	EventDelete   Event = "delete"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventResubmit Event = "resubmit"
)

// Trigger is an event together with the facts its guards inspect.
type Trigger struct {
	Event  Event
	Actor  rbac.Actor
	Reason string
}

// Guard vetoes a transition by returning an error.
type Guard func(req Request, t Trigger) error

type transition struct {
	to     Status
	guards []Guard
}

// Machine is the request transition table. A resubmit transition targets the
// status of the new request; the rejected source is never mutated. A delete
// targets the empty status, meaning the row is removed.
type Machine struct {
	table map[Status]map[Event]transition
}

type stateConfig struct {
	m    *Machine
	from Status
}

// NewMachine returns the request lifecycle.
func NewMachine() *Machine {
	m := &Machine{table: make(map[Status]map[Event]transition)}
	m.configure(StatusDraft).
		permit(EventUpdate, StatusDraft, requireRequester).
		permit(EventSubmit, StatusPendingApproval, requireRequester).
		permit(EventDelete, "", requireRequester)
	m.configure(StatusPendingApproval).
		permit(EventApprove, StatusApproved, requireApprover).
		permit(EventReject, StatusRejected, requireApprover, requireReason)
	m.configure(StatusRejected).
		permit(EventResubmit, StatusPendingApproval, requireRequester, requireResubmissionsLeft)
	return m
}

func (m *Machine) configure(from Status) *stateConfig {
	if !from.Valid() {
		panic(fmt.Sprintf("requests: invalid state %q", from))
	}
	if _, ok := m.table[from]; !ok {
		m.table[from] = make(map[Event]transition)
	}
	return &stateConfig{m: m, from: from}
}

func (c *stateConfig) permit(ev Event, to Status, guards ...Guard) *stateConfig {
	c.m.table[c.from][ev] = transition{to: to, guards: guards}
	return c
}

// Fire checks whether t may be applied to req and returns the target status.
func (m *Machine) Fire(req Request, t Trigger) (Status, error) {
	tr, ok := m.table[req.Status][t.Event]
	if !ok {
		return "", shared.WithMessage(ErrInvalidTransition,
			fmt.Sprintf("cannot %s a request in status %s", t.Event, req.Status))
	}
	for _, guard := range tr.guards {
		if err := guard(req, t); err != nil {
			return "", err
		}
	}
	return tr.to, nil
}

// CanFire reports whether the event exists for status, ignoring guards.
func (m *Machine) CanFire(status Status, ev Event) bool {
	_, ok := m.table[status][ev]
	return ok
}

// Permitted lists the events defined for status.
func (m *Machine) Permitted(status Status) []Event {
	var out []Event
	for _, ev := range []Event{EventUpdate, EventSubmit, EventDelete, EventApprove, EventReject, EventResubmit} {
		if m.CanFire(status, ev) {
			out = append(out, ev)
		}
	}
	return out
}

func requireRequester(req Request, t Trigger) error {
	if !t.Actor.Authenticated() {
		return ErrNotAuthenticated
	}
	if !req.OwnedBy(t.Actor) {
		return ErrNotRequester
	}
	return nil
}

func requireApprover(_ Request, t Trigger) error {
	if !t.Actor.CanApprove() {
		return ErrNotApprover
	}
	return nil
}

func requireReason(_ Request, t Trigger) error {
	if !ValidRejectionReason(t.Reason) {
		return ErrReasonTooShort
	}
	return nil
}

// The limit is evaluated on the rejected predecessor's count.
func requireResubmissionsLeft(req Request, _ Trigger) error {
	if req.ResubmissionCount >= MaxResubmissions {
		return ErrResubmissionLimit
	}
	return nil
}

// ValidRejectionReason reports whether reason is long enough once trimmed.
func ValidRejectionReason(reason string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(reason)) >= MinRejectionReasonLength
}
