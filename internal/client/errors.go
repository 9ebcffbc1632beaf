package client

import (
	"errors"
	"fmt"
)

// TransientError wraps a network or server failure that the caller may
// retry. Initial loads surface it; background read-receipt submissions
// log and drop it.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// SendRejectedError means the server declined a submitted message, for
// content or permission reasons. The optimistic entry must be reverted,
// never left pending.
type SendRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *SendRejectedError) Error() string {
	return fmt.Sprintf("send rejected (%d): %s", e.StatusCode, e.Reason)
}

// MembershipConflictError means a group membership change was refused,
// e.g. removing a protected participant. Always surfaced to the caller.
type MembershipConflictError struct {
	ConversationId string
	ParticipantId  string
	Reason         string
}

func (e *MembershipConflictError) Error() string {
	return fmt.Sprintf("membership conflict in conversation %q for participant %q: %s",
		e.ConversationId, e.ParticipantId, e.Reason)
}

// StaleSubscriptionError indicates a sequence gap on a conversation
// scope; the synchronizer reacts with a full history refetch.
type StaleSubscriptionError struct {
	ConversationId string
	HaveSeq        int
	GotSeq         int
}

func (e *StaleSubscriptionError) Error() string {
	return fmt.Sprintf("stale subscription on conversation %q: have seq %d, got seq %d",
		e.ConversationId, e.HaveSeq, e.GotSeq)
}
