// Package display turns queue snapshots into renderable frames.
// It handles stack placement, the preference gate, the auto-hide timer of
// the head item, and user dismissals.
package display
