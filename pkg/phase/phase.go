// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package phase implements the pipeline lifecycle state machine of spec
// section 3.3.
package phase

import "fmt"

// Phase is a pipeline instance's lifecycle state.
type Phase int

const (
	Pending Phase = iota
	Starting
	Running
	Updating
	RollingBack
	Draining
	Stopped
	Rejected
	Failed
	Deleting
	Deleted
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "Pending"
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Updating:
		return "Updating"
	case RollingBack:
		return "RollingBack"
	case Draining:
		return "Draining"
	case Stopped:
		return "Stopped"
	case Rejected:
		return "Rejected"
	case Failed:
		return "Failed"
	case Deleting:
		return "Deleting"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Terminal reports whether a phase is one of the terminal states marked *
// in spec section 3.3: Stopped, Rejected, Failed, Deleted.
func (p Phase) Terminal() bool {
	switch p {
	case Stopped, Rejected, Failed, Deleted:
		return true
	default:
		return false
	}
}

// FailureReason qualifies a Failed phase.
type FailureReason string

const (
	ReasonRuntimeError FailureReason = "RuntimeError"
	ReasonDrainError   FailureReason = "DrainError"
)

// DeleteMode qualifies a Deleting phase.
type DeleteMode int

const (
	DeleteGraceful DeleteMode = iota
	DeleteForce
)

// State is a pipeline instance's observed phase plus any Failed/Deleting
// qualifier.
type State struct {
	Phase  Phase
	Reason FailureReason // meaningful only when Phase == Failed
	Mode   DeleteMode    // meaningful only when Phase == Deleting
}

// transitions encodes the state machine of spec section 3.3:
//
//	Pending -> Starting -> Running <-> Updating/RollingBack
//	Running -> Draining -> Stopped*
//	any -> Rejected* | Failed(reason)* | Deleting(mode) -> Deleted*
var transitions = map[Phase]map[Phase]bool{
	Pending:     {Starting: true, Rejected: true, Failed: true},
	Starting:    {Running: true, Rejected: true, Failed: true, Deleting: true},
	Running:     {Updating: true, Draining: true, Failed: true, Deleting: true},
	Updating:    {Running: true, RollingBack: true, Failed: true, Deleting: true},
	RollingBack: {Running: true, Failed: true, Deleting: true},
	Draining:    {Stopped: true, Failed: true},
	Deleting:    {Deleted: true, Failed: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the phase machine. Any phase may transition to Rejected or Failed per
// spec section 3.3 ("any -> Rejected* | Failed(reason)*"), except terminal
// phases, which never transition.
func CanTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == Rejected || to == Failed {
		return true
	}
	return transitions[from][to]
}

// Transition validates and returns the new State, or an error naming the
// illegal edge.
func Transition(cur State, to Phase, reason FailureReason) (State, error) {
	if !CanTransition(cur.Phase, to) {
		return cur, fmt.Errorf("phase: illegal transition %s -> %s", cur.Phase, to)
	}
	next := State{Phase: to}
	if to == Failed {
		next.Reason = reason
	}
	return next, nil
}

// HealthPolicy derives liveness/readiness from the current phase (spec
// section 3.3: "each phase controls whether the pipeline is live and/or
// ready against configured HealthPolicy").
type HealthPolicy struct {
	// ReadyPhases is the set of phases considered ready to receive traffic.
	ReadyPhases map[Phase]bool
}

// DefaultHealthPolicy considers only Running ready, and every
// non-terminal-Failed phase live.
func DefaultHealthPolicy() HealthPolicy {
	return HealthPolicy{ReadyPhases: map[Phase]bool{Running: true}}
}

// Live reports liveness: true unless the instance has failed.
func (h HealthPolicy) Live(s State) bool {
	return s.Phase != Failed
}

// Ready reports readiness per the configured policy.
func (h HealthPolicy) Ready(s State) bool {
	return h.ReadyPhases[s.Phase]
}
