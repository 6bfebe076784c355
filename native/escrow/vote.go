package escrow

// votesToDecide is the number of matching votes out of three eligible voters
// that settles an escrow.
const votesToDecide = 2

// Vote records the caller's choice. Buyer and seller may always vote; the
// arbitrator once the escrow is disputed. The second matching vote settles the
// escrow in that direction.
func (e *Engine) Vote(id [32]byte, caller [20]byte, forRelease bool) error {
	release, err := e.enter()
	if err != nil {
		return err
	}
	defer release()

	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if esc.Resolved {
		return ErrAlreadyResolved
	}
	if !esc.CanVote(caller) {
		return ErrNotParticipant
	}
	voted, err := e.state.EscrowHasVoted(id, caller)
	if err != nil {
		return err
	}
	if voted {
		return ErrAlreadyVoted
	}
	if err := e.state.EscrowVotePut(id, caller); err != nil {
		return err
	}
	if forRelease {
		esc.ReleaseVotes++
	} else {
		esc.RefundVotes++
	}
	e.emit(NewVoteEvent(esc, caller, forRelease))

	switch {
	case esc.ReleaseVotes >= votesToDecide:
		return e.settle(esc, OutcomeReleased)
	case esc.RefundVotes >= votesToDecide:
		return e.settle(esc, OutcomeRefunded)
	default:
		return e.storeEscrow(esc)
	}
}
