package engine

// ComboType classifies a set of cat cards.
type ComboType string

const (
	ComboInvalid     ComboType = ""
	ComboStealRandom ComboType = "steal_random"
	ComboStealDefuse ComboType = "steal_defuse"
)

// ValidateCombo classifies 2 or 3 cat cards. Feral is a wildcard for one missing match.
//
//	2 cards: a pair, or feral + any other cat          -> steal random
//	3 cards: three of a kind, two ferals + one cat,
//	         or one feral + a pair of one non-feral cat -> steal defuse
func ValidateCombo(cards []CardKind) ComboType {
	if len(cards) < 2 || len(cards) > 3 {
		return ComboInvalid
	}
	feral := 0
	others := map[CardKind]int{}
	for _, c := range cards {
		if !c.IsCat() {
			return ComboInvalid
		}
		if c == CatFeral {
			feral++
		} else {
			others[c]++
		}
	}
	allSame := len(others) == 0 || (len(others) == 1 && feral == 0)

	switch len(cards) {
	case 2:
		if allSame || (feral == 1 && len(others) == 1) {
			return ComboStealRandom
		}
	case 3:
		if allSame {
			return ComboStealDefuse
		}
		if feral == 2 && len(others) == 1 {
			return ComboStealDefuse
		}
		if feral == 1 && len(others) == 1 {
			return ComboStealDefuse // the two others are one kind
		}
	}
	return ComboInvalid
}
