// Package scheduler builds a single day's plan from ranked tasks.
//
// Placement is one greedy pass with no backtracking:
//   - anchored tasks (scheduled_time set) go to their fixed time unconditionally
//     and neither consume budget nor move the cursor
//   - free tasks go at the cursor while the remaining budget covers them
//   - a task that does not fit is rejected with insufficient_time and the pass
//     moves on without look-ahead
//
// Overlaps are detected after placement and reported, never resolved.
package scheduler
