// Package planning is the orchestration layer over the care engine: it
// loads an owner snapshot from storage, runs ranking and scheduling, applies
// completions and persists the results with an audit trail.
//
// Mutations are serialized per owner; a run always works on a snapshot it
// loaded under that owner's lock.
package planning
