package engine

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHandSize = 7
	DefaultKittens  = 3
	RuleVersion     = "classic-1"
)

// CatalogEntry is a card kind and how many copies the starting deck holds.
type CatalogEntry struct {
	Kind  CardKind `yaml:"kind" json:"kind"`
	Count int      `yaml:"count" json:"count"`
}

// Catalog describes the multiset a session deals from.
type Catalog struct {
	Cards    []CatalogEntry `yaml:"cards" json:"cards"`
	HandSize int            `yaml:"hand_size" json:"hand_size"`
	Kittens  int            `yaml:"kittens" json:"kittens"`
}

// DefaultCatalog returns the classic composition.
func DefaultCatalog() Catalog {
	return Catalog{
		Cards: []CatalogEntry{
			{Defuse, 3},
			{Attack, 3},
			{TargetedAttack, 3},
			{Skip, 6},
			{SeeTheFuture, 3},
			{AlterTheFuture, 4},
			{Shuffle, 4},
			{DrawFromBottom, 4},
			{Favor, 4},
			{Nope, 5},
			{CatTaco, 4},
			{CatWatermelon, 4},
			{CatPotato, 4},
			{CatBeard, 4},
			{CatRainbow, 4},
			{CatFeral, 4},
		},
		HandSize: DefaultHandSize,
		Kittens:  DefaultKittens,
	}
}

// Count returns the catalog count for one kind.
func (c Catalog) Count(k CardKind) int {
	n := 0
	for _, e := range c.Cards {
		if e.Kind == k {
			n += e.Count
		}
	}
	return n
}

// DrawPile builds the unshuffled deck hands are dealt from: everything except defuses and kittens.
func (c Catalog) DrawPile() Pile {
	var p Pile
	for _, e := range c.Cards {
		if e.Kind == Defuse || e.Kind == ExplodingKitten {
			continue
		}
		for i := 0; i < e.Count; i++ {
			p = append(p, e.Kind)
		}
	}
	return p
}

// MaxPlayers is the largest table the catalog can deal.
func (c Catalog) MaxPlayers() int {
	if c.HandSize <= 0 {
		return 0
	}
	return len(c.DrawPile()) / c.HandSize
}

func (c Catalog) Validate() error {
	if c.HandSize <= 0 {
		return fmt.Errorf("%w: hand size must be positive", ErrInvalidSetup)
	}
	if c.Kittens < 0 {
		return fmt.Errorf("%w: negative kitten count", ErrInvalidSetup)
	}
	for _, e := range c.Cards {
		if !e.Kind.Valid() {
			return fmt.Errorf("%w: unknown card %q in catalog", ErrInvalidSetup, e.Kind)
		}
		if e.Kind == ExplodingKitten {
			return fmt.Errorf("%w: kittens are configured with the kittens field", ErrInvalidSetup)
		}
		if e.Count < 0 {
			return fmt.Errorf("%w: negative count for %s", ErrInvalidSetup, e.Kind)
		}
	}
	return nil
}

// catalogFile mirrors Catalog with optional scalars so an explicit zero is kept.
type catalogFile struct {
	Cards    []CatalogEntry `yaml:"cards"`
	HandSize *int           `yaml:"hand_size"`
	Kittens  *int           `yaml:"kittens"`
}

// LoadCatalog reads a YAML catalog file. A missing hand_size or kittens key falls
// back to the default; kittens: 0 deals a deck without kittens.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog YAML: %w", err)
	}
	c := Catalog{Cards: f.Cards, HandSize: DefaultHandSize, Kittens: DefaultKittens}
	if f.HandSize != nil {
		c.HandSize = *f.HandSize
	}
	if f.Kittens != nil {
		c.Kittens = *f.Kittens
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// NewRand returns a non-cryptographic source; seed 0 means time seeded.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// ShuffleCards is an in-place Fisher-Yates shuffle.
func ShuffleCards(r *rand.Rand, p Pile) {
	for i := len(p) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		p[i], p[j] = p[j], p[i]
	}
}
