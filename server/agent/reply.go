package agent

import "kitten-arena/server/engine"

// Notice is the public part of an action. The payload is left out because it
// can name cards only the actor or receiver may see.
type Notice struct {
	Turn     int               `json:"turn"`
	Actor    string            `json:"actor,omitempty"`
	Receiver string            `json:"receiver,omitempty"`
	Action   engine.ActionKind `json:"action"`
	Message  string            `json:"message"`
	Level    engine.Level      `json:"level"`
}

func PublicNotice(a engine.Action) Notice {
	return Notice{Turn: a.Turn, Actor: a.Actor, Receiver: a.Receiver, Action: a.Kind, Message: a.Message, Level: a.Level}
}

// Reply is an operation result trimmed to what playerID may know.
type Reply struct {
	Outcome     engine.Outcome  `json:"outcome"`
	Winner      string          `json:"winner,omitempty"`
	Turn        string          `json:"turn"`
	TurnChanged bool            `json:"turn_changed"`
	Prompt      *engine.Prompt  `json:"prompt,omitempty"`
	Reveals     []engine.Reveal `json:"reveals,omitempty"`
	Notices     []Notice        `json:"notices,omitempty"`
	View        Observation     `json:"view"`
}

// BuildReply filters res for playerID: the prompt and reveals only when addressed
// to them, notices without payloads, and their own observation instead of the snapshot.
func BuildReply(res *engine.Result, playerID string) Reply {
	r := Reply{
		Outcome:     res.Outcome,
		Winner:      res.Winner,
		Turn:        res.Turn,
		TurnChanged: res.TurnChanged,
		View:        BuildObservation(res.State, playerID),
	}
	if res.Prompt != nil && res.Prompt.Recipient == playerID {
		p := *res.Prompt
		r.Prompt = &p
	}
	for _, rv := range res.Reveals {
		if rv.Recipient == playerID {
			r.Reveals = append(r.Reveals, rv)
		}
	}
	for _, a := range res.Actions {
		r.Notices = append(r.Notices, PublicNotice(a))
	}
	return r
}
