// Package vote implements the per-answer vote toggle.
//
// A voter is in at most one of the two sets at any time. Toggling the side
// the voter is already on removes the vote; toggling the other side moves
// the voter across, clearing the opposite set.
package vote

// Ballot holds the voter sets of a single answer.
type Ballot struct {
	Upvoters   []uint
	Downvoters []uint
}

// Contains reports whether id is present in set.
func contains(set []uint, id uint) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func remove(set []uint, id uint) []uint {
	out := set[:0]
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// HasUpvoted reports whether voter currently upvotes the answer.
func (b *Ballot) HasUpvoted(voter uint) bool { return contains(b.Upvoters, voter) }

// HasDownvoted reports whether voter currently downvotes the answer.
func (b *Ballot) HasDownvoted(voter uint) bool { return contains(b.Downvoters, voter) }

// ToggleUp applies an upvote toggle for voter.
// 已赞成 → 取消；否则加入赞成集合并从反对集合移除。
func (b *Ballot) ToggleUp(voter uint) {
	if contains(b.Upvoters, voter) {
		b.Upvoters = remove(b.Upvoters, voter)
		return
	}
	b.Upvoters = append(b.Upvoters, voter)
	b.Downvoters = remove(b.Downvoters, voter)
}

// ToggleDown applies a downvote toggle for voter, mirroring ToggleUp.
func (b *Ballot) ToggleDown(voter uint) {
	if contains(b.Downvoters, voter) {
		b.Downvoters = remove(b.Downvoters, voter)
		return
	}
	b.Downvoters = append(b.Downvoters, voter)
	b.Upvoters = remove(b.Upvoters, voter)
}

// Vote state values for a single voter, matching model.VoteUp/VoteDown.
const (
	None = 0
	Up   = 1
	Down = -1
)

// State returns the voter's current vote state on the ballot.
func (b *Ballot) State(voter uint) int {
	switch {
	case contains(b.Upvoters, voter):
		return Up
	case contains(b.Downvoters, voter):
		return Down
	default:
		return None
	}
}

// Next returns the vote state after toggling in the requested direction
// from the current state. Requesting the current direction cancels it.
func Next(current, requested int) int {
	if current == requested {
		return None
	}
	return requested
}
