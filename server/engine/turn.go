package engine

// NoSeat is returned by seat lookups when nobody qualifies.
const NoSeat = -1

// nextSeat is a plain modular step over the current seating. Eliminated seats are already
// gone from Players, so no skipping is needed.
func (s *Session) nextSeat() int {
	if len(s.Players) == 0 {
		return NoSeat
	}
	return (s.Current + 1) % len(s.Players)
}

// endTurnIfDue passes the turn once the draw obligation is used up.
func (s *Session) endTurnIfDue() bool {
	if s.ToDraw > 0 {
		return false
	}
	next := s.nextSeat()
	if next == NoSeat {
		return false
	}
	s.Current = next
	s.ToDraw = 1
	return true
}

// consumeDraw counts one draw against the obligation.
func (s *Session) consumeDraw() {
	if s.ToDraw > 0 {
		s.ToDraw--
	}
}

// passTurn hands the turn to the next seat with a fresh obligation.
func (s *Session) passTurn() {
	s.ToDraw = 0
	s.endTurnIfDue()
}
