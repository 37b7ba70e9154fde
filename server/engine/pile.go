package engine

// Pile is an ordered run of cards: the draw pile (index 0 is the top), a hand or the discard pile.
type Pile []CardKind

func (p Pile) Clone() Pile {
	if p == nil {
		return nil
	}
	return append(Pile{}, p...)
}

// RemoveOne drops the first card of kind k, keeping the order of the rest.
func (p *Pile) RemoveOne(k CardKind) bool {
	for i, c := range *p {
		if c == k {
			*p = append((*p)[:i], (*p)[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll removes every card in ks or nothing at all.
func (p *Pile) RemoveAll(ks []CardKind) bool {
	next := p.Clone()
	for _, k := range ks {
		if !next.RemoveOne(k) {
			return false
		}
	}
	*p = next
	return true
}

func (p Pile) Contains(k CardKind) bool { return p.Count(k) > 0 }

func (p Pile) Count(k CardKind) int {
	n := 0
	for _, c := range p {
		if c == k {
			n++
		}
	}
	return n
}

// PeekTop copies the top min(n, len) cards.
func (p Pile) PeekTop(n int) Pile {
	if n > len(p) {
		n = len(p)
	}
	if n <= 0 {
		return Pile{}
	}
	return append(Pile{}, p[:n]...)
}

// InsertAt places c before index pos; pos == len(p) puts it at the bottom.
func (p *Pile) InsertAt(pos int, c CardKind) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(*p) {
		pos = len(*p)
	}
	*p = append(*p, "")
	copy((*p)[pos+1:], (*p)[pos:])
	(*p)[pos] = c
}

func (p *Pile) PopTop() (CardKind, bool) {
	if len(*p) == 0 {
		return "", false
	}
	c := (*p)[0]
	*p = (*p)[1:]
	return c, true
}

func (p *Pile) PopBottom() (CardKind, bool) {
	n := len(*p)
	if n == 0 {
		return "", false
	}
	c := (*p)[n-1]
	*p = (*p)[:n-1]
	return c, true
}

// SameCards reports whether a and b hold the same multiset.
func SameCards(a, b []CardKind) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[CardKind]int, len(a))
	for _, c := range a {
		counts[c]++
	}
	for _, c := range b {
		counts[c]--
		if counts[c] < 0 {
			return false
		}
	}
	return true
}

// Kinds returns the distinct kinds in p in first-seen order.
func (p Pile) Kinds() []string {
	seen := make(map[CardKind]bool, len(p))
	var out []string
	for _, c := range p {
		if !seen[c] {
			seen[c] = true
			out = append(out, string(c))
		}
	}
	return out
}

// Strings lists every card in order.
func (p Pile) Strings() []string {
	out := make([]string, len(p))
	for i, c := range p {
		out[i] = string(c)
	}
	return out
}
