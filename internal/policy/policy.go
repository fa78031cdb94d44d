// Package policy centralizes who may do what to which entity. Services call
// these instead of comparing IDs and role strings inline, so the rules live
// (and are tested) in one place.
package policy

import "github.com/openlancer/openlancer/internal/model"

// CanBid reports whether the actor may place bids at all.
func CanBid(actor model.Actor) bool {
	return actor.Role == model.RoleFreelancer
}

// CanAcceptBid reports whether the actor may accept a bid on the given job.
func CanAcceptBid(actor model.Actor, job *model.Job) bool {
	return actor.ID == job.BuyerID || actor.IsAdmin()
}

// CanWithdrawBid reports whether the actor may withdraw the bid.
func CanWithdrawBid(actor model.Actor, bid *model.Bid) bool {
	return actor.ID == bid.FreelancerID || actor.IsAdmin()
}

// CanFundEscrow reports whether the actor may pay into a contract's escrow.
func CanFundEscrow(actor model.Actor, contract *model.Contract) bool {
	return actor.ID == contract.BuyerID || actor.IsAdmin()
}

// CanReleaseEscrow reports whether the actor may release held funds.
func CanReleaseEscrow(actor model.Actor, contract *model.Contract) bool {
	return actor.ID == contract.BuyerID || actor.IsAdmin()
}

// CanManageMilestones reports whether the actor may create milestones on a
// contract or complete the contract.
func CanManageMilestones(actor model.Actor, contract *model.Contract) bool {
	return actor.ID == contract.BuyerID || actor.IsAdmin()
}

// CanCancelContract reports whether the actor may cancel a contract.
func CanCancelContract(actor model.Actor, _ *model.Contract) bool {
	return actor.IsAdmin()
}

// CanViewContract reports whether the actor may read a contract.
func CanViewContract(actor model.Actor, contract *model.Contract) bool {
	return actor.ID == contract.BuyerID || actor.ID == contract.FreelancerID || actor.IsAdmin()
}

// CanReview reports whether the actor is a party to the contract.
func CanReview(actor model.Actor, contract *model.Contract) bool {
	return actor.ID == contract.BuyerID || actor.ID == contract.FreelancerID
}

// MilestoneMove reports whether the actor may move a milestone of the given
// contract from one status to another. The freelancer progresses work
// (including rework after rejection); the buyer judges completed work; an
// admin may perform any transition the state machine allows.
func MilestoneMove(actor model.Actor, contract *model.Contract, from, to model.MilestoneStatus) bool {
	if !from.CanTransition(to) {
		return false
	}
	if actor.IsAdmin() {
		return true
	}
	switch {
	case actor.ID == contract.FreelancerID:
		return to == model.MilestoneInProgress || to == model.MilestoneCompleted
	case actor.ID == contract.BuyerID:
		return from == model.MilestoneCompleted &&
			(to == model.MilestoneApproved || to == model.MilestoneRejected)
	}
	return false
}
