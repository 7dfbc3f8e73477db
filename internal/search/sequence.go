package search

import "sync/atomic"

// Sequencer hands out monotonically increasing request numbers so a caller
// can tell whether a response still belongs to the newest request.
type Sequencer struct {
	last atomic.Uint64
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

func (s *Sequencer) IsLatest(seq uint64) bool {
	return s.last.Load() == seq
}

func (s *Sequencer) Last() uint64 {
	return s.last.Load()
}
