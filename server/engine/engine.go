package engine

import (
	"fmt"
	"strconv"
)

// Play resolves a single action card from the current player's hand.
func (s *Session) Play(actor string, card CardKind) (*Result, error) {
	return s.do(func(r *Result) error { return s.play(r, actor, card) })
}

// Draw takes the top card of the deck for the current player.
func (s *Session) Draw(actor string) (*Result, error) {
	return s.do(func(r *Result) error {
		idx, err := s.turnActor(actor)
		if err != nil {
			return err
		}
		c, ok := s.Deck.PopTop()
		s.resolveDrawn(r, idx, c, ok)
		return nil
	})
}

// PlayCombo spends two or three cat cards and asks the actor for an opponent to steal from.
func (s *Session) PlayCombo(actor string, cards []CardKind) (*Result, error) {
	return s.do(func(r *Result) error { return s.playCombo(r, actor, cards) })
}

// ReorderFuture writes a new order for the cards revealed by ALTER_THE_FUTURE.
func (s *Session) ReorderFuture(actor string, cards []CardKind) (*Result, error) {
	return s.do(func(r *Result) error {
		if err := s.expect(PendingFutureReorder, actor); err != nil {
			return err
		}
		if !SameCards(cards, s.Pending.Cards) {
			return fmt.Errorf("%w: order must use exactly the revealed cards %v", ErrInvalidCard, s.Pending.Cards)
		}
		copy(s.Deck, cards)
		s.Pending = Pending{}
		r.log(Action{Actor: actor, Kind: ActAlterFuture, Level: LevelInfo,
			Message: s.name(actor) + " altered the future"})
		return nil
	})
}

// RequestFavor names the opponent who must hand over a card.
func (s *Session) RequestFavor(actor, target string) (*Result, error) {
	return s.do(func(r *Result) error {
		if err := s.expect(PendingFavorTarget, actor); err != nil {
			return err
		}
		idx, err := s.opponentSeat(actor, target)
		if err != nil {
			return err
		}
		t := s.Players[idx]
		r.log(Action{Actor: actor, Receiver: target, Kind: ActFavorRequest, Level: LevelInfo,
			Message: s.name(actor) + " asked " + t.Name + " for a favor"})
		if len(t.Hand) == 0 {
			s.Pending = Pending{}
			r.log(Action{Actor: target, Receiver: actor, Kind: ActFavorResponse, Level: LevelWarning,
				Message: t.Name + " had nothing to give", Payload: map[string]any{"fizzled": true}})
			return nil
		}
		s.Pending = Pending{Kind: PendingFavorResponse, Actor: target, Requester: actor}
		r.Prompt = &Prompt{Kind: PromptFavorCard, Recipient: target, Options: t.Hand.Kinds()}
		return nil
	})
}

// GiveFavor hands one card from the asked player to the requester.
func (s *Session) GiveFavor(giver string, card CardKind) (*Result, error) {
	return s.do(func(r *Result) error {
		if err := s.expect(PendingFavorResponse, giver); err != nil {
			return err
		}
		g := s.Players[s.seat(giver)]
		reqIdx := s.seat(s.Pending.Requester)
		if reqIdx == NoSeat {
			return fmt.Errorf("%w: requester %q left the game", ErrInvalidTarget, s.Pending.Requester)
		}
		if !g.Hand.RemoveOne(card) {
			return fmt.Errorf("%w: %s not in hand", ErrInvalidCard, card)
		}
		req := s.Players[reqIdx]
		req.Hand = append(req.Hand, card)
		s.Pending = Pending{}
		r.reveal(req.ID, "favor_received", Pile{card})
		r.log(Action{Actor: giver, Receiver: req.ID, Kind: ActFavorResponse, Level: LevelInfo,
			Message: g.Name + " gave a card to " + req.Name, Payload: map[string]any{"card": card}})
		return nil
	})
}

// TargetAttack passes the turn to target with two extra draws.
func (s *Session) TargetAttack(actor, target string) (*Result, error) {
	return s.do(func(r *Result) error {
		if err := s.expect(PendingAttackTarget, actor); err != nil {
			return err
		}
		idx, err := s.opponentSeat(actor, target)
		if err != nil {
			return err
		}
		s.Pending = Pending{}
		s.ToDraw += 2
		s.Current = idx
		r.log(Action{Actor: actor, Receiver: target, Kind: ActTargetedConfirm, Level: LevelWarning,
			Message: s.name(actor) + " attacked " + s.name(target),
			Payload: map[string]any{"to_draw": s.ToDraw}})
		return nil
	})
}

// SelectStealTarget resolves the opponent choice of a cat combo.
func (s *Session) SelectStealTarget(actor, target string) (*Result, error) {
	return s.do(func(r *Result) error {
		if err := s.expect(PendingCatOpponent, actor); err != nil {
			return err
		}
		idx, err := s.opponentSeat(actor, target)
		if err != nil {
			return err
		}
		t := s.Players[idx]
		p := s.Players[s.seat(actor)]
		combo := s.Pending.Combo

		if combo == ComboStealDefuse {
			s.Pending = Pending{}
			if !t.Hand.RemoveOne(Defuse) {
				r.log(Action{Actor: actor, Receiver: target, Kind: ActCatSteal, Level: LevelInfo,
					Message: p.Name + " tried to steal a DEFUSE from " + t.Name + " but found none",
					Payload: map[string]any{"combo": combo, "stolen": false}})
				return nil
			}
			p.Hand = append(p.Hand, Defuse)
			r.reveal(actor, "stolen", Pile{Defuse})
			r.reveal(target, "stolen_from", Pile{Defuse})
			r.log(Action{Actor: actor, Receiver: target, Kind: ActCatSteal, Level: LevelSuccess,
				Message: p.Name + " stole a DEFUSE from " + t.Name,
				Payload: map[string]any{"combo": combo, "stolen": true}})
			return nil
		}

		if len(t.Hand) == 0 {
			s.Pending = Pending{}
			r.log(Action{Actor: actor, Receiver: target, Kind: ActCatSteal, Level: LevelWarning,
				Message: t.Name + " has no cards to steal", Payload: map[string]any{"combo": combo, "fizzled": true}})
			return nil
		}
		snap := t.Hand.Clone()
		ShuffleCards(s.rng, snap)
		s.Pending = Pending{Kind: PendingCatCard, Actor: actor, Target: target, Combo: combo,
			Cards: s.Pending.Cards, Snapshot: snap}
		opts := make([]string, len(snap))
		for i := range snap {
			opts[i] = strconv.Itoa(i + 1)
		}
		r.Prompt = &Prompt{Kind: PromptCatNumber, Recipient: actor, Options: opts}
		return nil
	})
}

// ResolveSteal takes the card at 1-based position index of the shuffled hand copy.
func (s *Session) ResolveSteal(actor string, index int) (*Result, error) {
	return s.do(func(r *Result) error {
		if err := s.expect(PendingCatCard, actor); err != nil {
			return err
		}
		snap := s.Pending.Snapshot
		if index < 1 || index > len(snap) {
			return fmt.Errorf("%w: pick 1..%d, got %d", ErrInvalidTarget, len(snap), index)
		}
		tIdx := s.seat(s.Pending.Target)
		if tIdx == NoSeat {
			return fmt.Errorf("%w: %q is no longer seated", ErrInvalidTarget, s.Pending.Target)
		}
		t := s.Players[tIdx]
		card := snap[index-1]
		if !t.Hand.RemoveOne(card) {
			return fmt.Errorf("%w: %s is no longer in %s's hand", ErrInvalidCard, card, t.ID)
		}
		p := s.Players[s.seat(actor)]
		p.Hand = append(p.Hand, card)
		s.Pending = Pending{}
		r.reveal(actor, "stolen", Pile{card})
		r.reveal(t.ID, "stolen_from", Pile{card})
		r.log(Action{Actor: actor, Receiver: t.ID, Kind: ActCatSteal, Level: LevelSuccess,
			Message: p.Name + " stole a card from " + t.Name,
			Payload: map[string]any{"combo": ComboStealRandom, "index": index, "stolen": true}})
		return nil
	})
}

func (s *Session) play(r *Result, actor string, card CardKind) error {
	idx, err := s.turnActor(actor)
	if err != nil {
		return err
	}
	switch {
	case !card.Valid():
		return fmt.Errorf("%w: unknown card %q", ErrInvalidCard, card)
	case card == Nope:
		return fmt.Errorf("%w: NOPE is reserved", ErrInvalidCard)
	case card == Defuse, card == ExplodingKitten:
		return fmt.Errorf("%w: %s cannot be played", ErrInvalidCard, card)
	case card.IsCat():
		return fmt.Errorf("%w: cat cards are played as a combo", ErrInvalidCard)
	}
	p := s.Players[idx]
	if !p.Hand.RemoveOne(card) {
		return fmt.Errorf("%w: %s not in hand", ErrInvalidCard, card)
	}
	s.Discard = append(s.Discard, card)

	switch card {
	case Shuffle:
		ShuffleCards(s.rng, s.Deck)
		r.log(Action{Actor: actor, Kind: ActPlayShuffle, Level: LevelInfo, Message: p.Name + " shuffled the deck"})
	case Skip:
		s.consumeDraw()
		r.log(Action{Actor: actor, Kind: ActPlaySkip, Level: LevelInfo, Message: p.Name + " skipped"})
		s.endTurnIfDue()
	case SeeTheFuture:
		top := s.Deck.PeekTop(3)
		r.reveal(actor, "see_the_future", top)
		r.log(Action{Actor: actor, Kind: ActPlaySeeFuture, Level: LevelInfo,
			Message: p.Name + " saw the future", Payload: map[string]any{"cards": len(top)}})
	case AlterTheFuture:
		top := s.Deck.PeekTop(3)
		r.reveal(actor, "alter_the_future", top)
		r.log(Action{Actor: actor, Kind: ActPlayAlterFuture, Level: LevelInfo,
			Message: p.Name + " is altering the future", Payload: map[string]any{"cards": len(top)}})
		if len(top) > 1 {
			s.Pending = Pending{Kind: PendingFutureReorder, Actor: actor, Cards: top}
			r.Prompt = &Prompt{Kind: PromptReorderFuture, Recipient: actor, Options: top.Strings()}
		}
	case DrawFromBottom:
		r.log(Action{Actor: actor, Kind: ActPlayDrawBottom, Level: LevelInfo, Message: p.Name + " drew from the bottom"})
		c, ok := s.Deck.PopBottom()
		s.resolveDrawn(r, idx, c, ok)
	case Favor:
		s.Pending = Pending{Kind: PendingFavorTarget, Actor: actor}
		r.Prompt = &Prompt{Kind: PromptFavorTarget, Recipient: actor, Options: s.opponents(actor)}
		r.log(Action{Actor: actor, Kind: ActPlayFavor, Level: LevelInfo, Message: p.Name + " played FAVOR"})
	case Attack:
		s.Current = s.nextSeat()
		s.ToDraw += 2
		next := s.currentID()
		r.log(Action{Actor: actor, Receiver: next, Kind: ActPlayAttack, Level: LevelWarning,
			Message: p.Name + " attacked " + s.name(next), Payload: map[string]any{"to_draw": s.ToDraw}})
	case TargetedAttack:
		s.Pending = Pending{Kind: PendingAttackTarget, Actor: actor}
		r.Prompt = &Prompt{Kind: PromptAttackTarget, Recipient: actor, Options: s.opponents(actor)}
		r.log(Action{Actor: actor, Kind: ActPlayTargeted, Level: LevelWarning, Message: p.Name + " played TARGETED_ATTACK"})
	}
	return nil
}

func (s *Session) playCombo(r *Result, actor string, cards []CardKind) error {
	idx, err := s.turnActor(actor)
	if err != nil {
		return err
	}
	combo := ValidateCombo(cards)
	if combo == ComboInvalid {
		return fmt.Errorf("%w: %v is not a cat combo", ErrInvalidCard, cards)
	}
	p := s.Players[idx]
	if !p.Hand.RemoveAll(cards) {
		return fmt.Errorf("%w: %v not in hand", ErrInvalidCard, cards)
	}
	spent := Pile(cards).Clone()
	s.Discard = append(s.Discard, spent...)
	s.Pending = Pending{Kind: PendingCatOpponent, Actor: actor, Combo: combo, Cards: spent}
	r.Prompt = &Prompt{Kind: PromptCatOpponent, Recipient: actor, Options: s.opponents(actor)}
	r.log(Action{Actor: actor, Kind: ActCatCombo, Level: LevelInfo,
		Message: p.Name + " played a cat combo", Payload: map[string]any{"combo": combo, "cards": spent.Strings()}})
	return nil
}

// resolveDrawn applies a card drawn by seat idx. ok is false when the deck was empty.
func (s *Session) resolveDrawn(r *Result, idx int, c CardKind, ok bool) {
	p := s.Players[idx]
	s.consumeDraw()
	if !ok {
		r.log(Action{Actor: p.ID, Kind: ActDrawCard, Level: LevelWarning,
			Message: p.Name + " drew from an empty deck", Payload: map[string]any{"empty": true}})
		s.endTurnIfDue()
		return
	}
	if c != ExplodingKitten {
		p.Hand = append(p.Hand, c)
		r.reveal(p.ID, "drawn", Pile{c})
		r.log(Action{Actor: p.ID, Kind: ActDrawCard, Level: LevelInfo,
			Message: p.Name + " drew a card", Payload: map[string]any{"card": c}})
		s.endTurnIfDue()
		return
	}

	r.log(Action{Actor: p.ID, Kind: ActDrawCard, Level: LevelError,
		Message: p.Name + " drew an EXPLODING_KITTEN", Payload: map[string]any{"card": c}})
	if p.Hand.RemoveOne(Defuse) {
		s.Discard = append(s.Discard, Defuse)
		s.Deck.InsertAt(s.rng.Intn(len(s.Deck)+1), ExplodingKitten)
		r.log(Action{Actor: p.ID, Kind: ActDefused, Level: LevelSuccess, Message: p.Name + " defused the kitten"})
		s.passTurn()
		return
	}
	s.eliminate(r, idx)
}

// eliminate removes seat idx. Its hand and the kitten go to the discard pile.
func (s *Session) eliminate(r *Result, idx int) {
	p := s.Players[idx]
	s.Discard = append(s.Discard, p.Hand...)
	s.Discard = append(s.Discard, ExplodingKitten)
	p.Hand = nil

	last := len(s.Players) - 1
	s.Players = append(s.Players[:idx:idx], s.Players[idx+1:]...)
	s.Eliminated = append(s.Eliminated, p.ID)
	s.Pending = Pending{}
	s.ToDraw = 0
	if idx == last {
		s.Current = 0
	} else {
		s.Current = idx
	}
	if len(s.Players) > 1 {
		s.ToDraw = 1
	}
	r.log(Action{Actor: p.ID, Kind: ActEliminated, Level: LevelError,
		Message: p.Name + " exploded", Payload: map[string]any{"remaining": len(s.Players)}})
}

// turnActor checks that actor may start a new action and returns their seat.
func (s *Session) turnActor(actor string) (int, error) {
	if s.Pending.Open() {
		return NoSeat, fmt.Errorf("%w: waiting on %s from %s", ErrInteractionPending, s.Pending.Kind, s.Pending.Actor)
	}
	idx := s.seat(actor)
	if idx == NoSeat {
		if s.eliminated(actor) {
			return NoSeat, fmt.Errorf("%w: %q has been eliminated", ErrInvalidActor, actor)
		}
		return NoSeat, fmt.Errorf("%w: player %q", ErrNotFound, actor)
	}
	if idx != s.Current {
		return NoSeat, fmt.Errorf("%w: it is %s's turn", ErrInvalidActor, s.currentID())
	}
	return idx, nil
}

// expect checks that the open interaction is of kind k and belongs to actor.
func (s *Session) expect(k PendingKind, actor string) error {
	if s.Pending.Kind != k {
		return fmt.Errorf("%w: want %s, have %q", ErrNoInteraction, k, s.Pending.Kind)
	}
	if s.Pending.Actor != actor {
		return fmt.Errorf("%w: %s is for %s", ErrInvalidActor, k, s.Pending.Actor)
	}
	return nil
}

// opponentSeat resolves a target that must be another seated player.
func (s *Session) opponentSeat(actor, target string) (int, error) {
	if target == actor {
		return NoSeat, fmt.Errorf("%w: cannot target yourself", ErrInvalidTarget)
	}
	if s.eliminated(target) {
		return NoSeat, fmt.Errorf("%w: %q has been eliminated", ErrInvalidTarget, target)
	}
	idx := s.seat(target)
	if idx == NoSeat {
		return NoSeat, fmt.Errorf("%w: player %q", ErrNotFound, target)
	}
	return idx, nil
}
