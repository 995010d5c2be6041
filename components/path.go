package components

// PathFollow wraps one active path and a cursor over its waypoints.
// HasPath and Reached are derived from the cursor so the two can never
// disagree with the waypoint list.
type PathFollow struct {
	Waypoints []Position
	Index     int
}

// HasPath reports whether waypoints remain ahead of the cursor.
func (p *PathFollow) HasPath() bool {
	return p.Index < len(p.Waypoints)
}

// Reached reports whether a path existed and has been fully consumed.
func (p *PathFollow) Reached() bool {
	return len(p.Waypoints) > 0 && p.Index >= len(p.Waypoints)
}

// Destination returns the final waypoint. Only valid when a path is set.
func (p *PathFollow) Destination() Position {
	return p.Waypoints[len(p.Waypoints)-1]
}
