// Package care holds the pet-care record types shared by the planner:
// tasks, owners and pets, plus the small value types they are built from
// (Clock for HH:MM times, Date for calendar dates, Window for availability).
//
// Everything here is plain data. Ranking, placement, conflict detection and
// recurrence live in the sub-packages and never mutate their inputs.
package care
