package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCombo(t *testing.T) {
	cases := []struct {
		name  string
		cards []CardKind
		want  ComboType
	}{
		{"pair", []CardKind{CatTaco, CatTaco}, ComboStealRandom},
		{"feral pair", []CardKind{CatFeral, CatTaco}, ComboStealRandom},
		{"two ferals", []CardKind{CatFeral, CatFeral}, ComboStealRandom},
		{"three of a kind", []CardKind{CatTaco, CatTaco, CatTaco}, ComboStealDefuse},
		{"two ferals and one", []CardKind{CatFeral, CatFeral, CatTaco}, ComboStealDefuse},
		{"feral and pair", []CardKind{CatBeard, CatFeral, CatBeard}, ComboStealDefuse},
		{"mixed pair", []CardKind{CatTaco, CatWatermelon}, ComboInvalid},
		{"feral and mixed", []CardKind{CatFeral, CatTaco, CatWatermelon}, ComboInvalid},
		{"three different", []CardKind{CatTaco, CatPotato, CatRainbow}, ComboInvalid},
		{"single", []CardKind{CatTaco}, ComboInvalid},
		{"empty", nil, ComboInvalid},
		{"four", []CardKind{CatTaco, CatTaco, CatTaco, CatTaco}, ComboInvalid},
		{"not a cat", []CardKind{Skip, Skip}, ComboInvalid},
		{"cat and defuse", []CardKind{CatFeral, Defuse}, ComboInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateCombo(tc.cards))
		})
	}
}
