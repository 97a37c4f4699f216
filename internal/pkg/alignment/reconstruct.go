package alignment

import (
	"sort"

	"github.com/airenas/tarimas/internal/pkg/persistence"
)

// Result keeps errors indexed by position in each sequence
type Result struct {
	TargetErrors     map[int]persistence.ErrorOperation `json:"targetErrors"`
	RecognizedErrors map[int]persistence.ErrorOperation `json:"recognizedErrors"`
}

// Reconstruct maps flat edit operations to both sequences.
// Substitutes carry only the recognized position, the target one is found by
// walking both sequences in lockstep and skipping deleted and inserted tokens.
// Out of bounds operations are dropped. A substitute wins over an insert at the same position.
func Reconstruct(target, recognized []string, ops []persistence.ErrorOperation) *Result {
	res := &Result{TargetErrors: map[int]persistence.ErrorOperation{},
		RecognizedErrors: map[int]persistence.ErrorOperation{}}

	var dels, ins, subs []persistence.ErrorOperation
	for _, op := range ops {
		switch op.Type {
		case persistence.ErrDelete:
			if inBounds(op.Position, len(target)) {
				dels = append(dels, op)
			}
		case persistence.ErrInsert:
			if inBounds(op.Position, len(recognized)) {
				ins = append(ins, op)
			}
		case persistence.ErrSubstitute:
			if inBounds(op.Position, len(recognized)) {
				subs = append(subs, op)
			}
		}
	}
	sortByPosition(dels)
	sortByPosition(ins)
	sortByPosition(subs)

	delAt := map[int]bool{}
	for _, op := range dels {
		res.TargetErrors[op.Position] = op
		delAt[op.Position] = true
	}
	insAt := map[int]bool{}
	for _, op := range ins {
		res.RecognizedErrors[op.Position] = op
		insAt[op.Position] = true
	}
	subAt := map[int]persistence.ErrorOperation{}
	for _, op := range subs {
		res.RecognizedErrors[op.Position] = op
		subAt[op.Position] = op
		delete(insAt, op.Position)
	}

	t, r := 0, 0
	for t < len(target) || r < len(recognized) {
		for t < len(target) && delAt[t] {
			t++
		}
		for r < len(recognized) && insAt[r] {
			r++
		}
		if op, ok := subAt[r]; ok && t < len(target) {
			res.TargetErrors[t] = op
		}
		t++
		r++
	}
	return res
}

func inBounds(pos, l int) bool {
	return pos >= 0 && pos < l
}

func sortByPosition(ops []persistence.ErrorOperation) {
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Position < ops[j].Position })
}
