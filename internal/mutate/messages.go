package mutate

import (
	"github.com/standardbeagle/lspfuzz/internal/generate"
	"github.com/standardbeagle/lspfuzz/internal/lsp"
	"github.com/standardbeagle/lspfuzz/internal/lspinput"
)

// appendMessage synthesizes a random message and appends it to the list.
type appendMessage struct{}

func (appendMessage) Name() string { return "append-message" }

func (appendMessage) Mutate(s *generate.State, in *lspinput.Input) (Result, error) {
	if len(in.Messages) >= lspinput.MaxMessages {
		return Skipped, nil
	}
	kinds := generate.SynthesizableKinds()
	kind, ok := generate.Choose(s, kinds)
	if !ok {
		return Skipped, nil
	}
	gen, ok := generate.Choose(s, generate.ForKind(kind))
	if !ok {
		return Skipped, nil
	}
	params, err := gen(s, in)
	if err != nil {
		if err == generate.ErrNothingGenerated {
			return Skipped, nil
		}
		return Skipped, err
	}
	in.Messages = append(in.Messages, lsp.NewMessage(kind, params))
	return Mutated, nil
}

// dropMessage removes a random message.
type dropMessage struct{}

func (dropMessage) Name() string { return "drop-message" }

func (dropMessage) Mutate(s *generate.State, in *lspinput.Input) (Result, error) {
	if len(in.Messages) == 0 {
		return Skipped, nil
	}
	idx := s.Rand.IntN(len(in.Messages))
	in.Messages = append(in.Messages[:idx], in.Messages[idx+1:]...)
	return Mutated, nil
}

// swapMessages exchanges two random indices.
type swapMessages struct{}

func (swapMessages) Name() string { return "swap-messages" }

func (swapMessages) Mutate(s *generate.State, in *lspinput.Input) (Result, error) {
	if len(in.Messages) < 2 {
		return Skipped, nil
	}
	i := s.Rand.IntN(len(in.Messages))
	j := s.Rand.IntN(len(in.Messages))
	in.Messages[i], in.Messages[j] = in.Messages[j], in.Messages[i]
	return Mutated, nil
}

// duplicateMessage re-inserts a random message after itself.
type duplicateMessage struct{}

func (duplicateMessage) Name() string { return "duplicate-message" }

func (duplicateMessage) Mutate(s *generate.State, in *lspinput.Input) (Result, error) {
	if len(in.Messages) == 0 || len(in.Messages) >= lspinput.MaxMessages {
		return Skipped, nil
	}
	idx := s.Rand.IntN(len(in.Messages))
	msg := in.Messages[idx]
	in.Messages = append(in.Messages, lsp.Message{})
	copy(in.Messages[idx+1:], in.Messages[idx:])
	in.Messages[idx+1] = msg
	return Mutated, nil
}

// MessageMutators builds the message-sequence mutation table. Append is
// weighted so that roughly a quarter of message mutations grow the list.
func MessageMutators() []Mutator {
	return []Mutator{
		appendMessage{},
		dropMessage{},
		swapMessages{},
		duplicateMessage{},
	}
}

// MessageReductions returns the mutators the minimizer uses.
func MessageReductions() []Mutator {
	return []Mutator{dropMessage{}}
}
