package jobfile

// Source hands out descriptors in arrival order. It is consumed by the
// dispatcher's admission stage and is not safe for concurrent use.
type Source struct {
	descs []Descriptor
	next  int
}

// NewSource copies descs, sorts them by arrival and returns a Source.
func NewSource(descs []Descriptor) *Source {
	cp := make([]Descriptor, len(descs))
	copy(cp, descs)
	SortByArrival(cp)
	return &Source{descs: cp}
}

// Peek returns the next unadmitted descriptor.
func (s *Source) Peek() (Descriptor, bool) {
	if s.next >= len(s.descs) {
		return Descriptor{}, false
	}
	return s.descs[s.next], true
}

// Pop consumes and returns the next descriptor.
func (s *Source) Pop() (Descriptor, bool) {
	d, ok := s.Peek()
	if ok {
		s.next++
	}
	return d, ok
}

// Remaining returns the number of descriptors not yet consumed.
func (s *Source) Remaining() int {
	return len(s.descs) - s.next
}

// Exhausted reports whether every descriptor has been consumed.
func (s *Source) Exhausted() bool {
	return s.Remaining() == 0
}

// All returns every descriptor in arrival order, consumed or not.
func (s *Source) All() []Descriptor {
	return s.descs
}

// Pending returns the descriptors not yet consumed, in arrival order.
func (s *Source) Pending() []Descriptor {
	return s.descs[s.next:]
}
