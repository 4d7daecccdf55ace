package sync

import gosync "sync"

// Sequencer orders fetch responses. Every fetch takes a number from Issue;
// its response may only be applied while that number is still the most
// recently issued one.
type Sequencer struct {
	mu   gosync.Mutex
	last uint64
}

// Issue returns the next sequence number.
func (s *Sequencer) Issue() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}

// Invalidate retires every number issued so far.
func (s *Sequencer) Invalidate() {
	s.Issue()
}

// Supersede runs mutate and, if it reports a change, retires every number
// issued so far. No response can be committed between the two.
func (s *Sequencer) Supersede(mutate func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !mutate() {
		return false
	}
	s.last++
	return true
}

// Commit runs apply if n is still current and reports whether it did.
// apply runs under the sequencer lock so a concurrent Issue cannot slip
// in between the check and the write.
func (s *Sequencer) Commit(n uint64, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n != s.last {
		return false
	}
	apply()
	return true
}

func (s *Sequencer) current() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
