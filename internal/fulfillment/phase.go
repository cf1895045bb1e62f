package fulfillment

// Phase is a named stage holding lane slots that run concurrently.
type Phase struct {
	name  string
	lanes []Lane
}

// NewPhase builds a phase from its lane slots.
func NewPhase(name string, lanes ...Lane) Phase {
	cp := make([]Lane, len(lanes))
	copy(cp, lanes)
	return Phase{name: name, lanes: cp}
}

func (p Phase) Name() string {
	return p.name
}

// Lanes returns a copy of the lane slots.
func (p Phase) Lanes() []Lane {
	cp := make([]Lane, len(p.lanes))
	copy(cp, p.lanes)
	return cp
}

// Lane returns slot i, or an absent lane when i is out of range.
func (p Phase) Lane(i int) Lane {
	if i < 0 || i >= len(p.lanes) {
		return Lane{}
	}
	return p.lanes[i]
}

// Width is the number of lane slots.
func (p Phase) Width() int {
	return len(p.lanes)
}

// Statuses lists the status of every slot in order.
func (p Phase) Statuses() []LaneStatus {
	out := make([]LaneStatus, len(p.lanes))
	for i, lane := range p.lanes {
		out[i] = lane.status
	}
	return out
}

// Populated counts slots that carry work.
func (p Phase) Populated() int {
	n := 0
	for _, lane := range p.lanes {
		if lane.HasWork() {
			n++
		}
	}
	return n
}

// Settled reports whether every lane is done or not applicable.
func (p Phase) Settled() bool {
	for _, lane := range p.lanes {
		if !lane.status.Settled() {
			return false
		}
	}
	return true
}

func (p Phase) withLane(i int, status LaneStatus) Phase {
	lanes := p.Lanes()
	lanes[i] = lanes[i].withStatus(status)
	return Phase{name: p.name, lanes: lanes}
}

func (p Phase) mapLanes(fn func(Lane) Lane) Phase {
	lanes := p.Lanes()
	for i := range lanes {
		lanes[i] = fn(lanes[i])
	}
	return Phase{name: p.name, lanes: lanes}
}

func (p Phase) completed() Phase {
	return p.mapLanes(func(l Lane) Lane { return l.withStatus(LaneDone) })
}
