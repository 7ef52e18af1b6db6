// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package polls

import (
	"fmt"

	"github.com/danielhkuo/topic-polls/models"
)

// NextLockState is the toggle transition for one actor:
//
//	unlocked             -> locked_by_moderator (moderator) | locked_by_user
//	locked_by_user       -> unlocked
//	locked_by_moderator  -> unlocked (moderator) | ErrLockedByModerator
func NextLockState(current models.LockState, moderator bool) (models.LockState, error) {
	switch current {
	case models.Unlocked:
		if moderator {
			return models.LockedByModerator, nil
		}
		return models.LockedByUser, nil
	case models.LockedByUser:
		return models.Unlocked, nil
	case models.LockedByModerator:
		if moderator {
			return models.Unlocked, nil
		}
		return current, ErrLockedByModerator
	default:
		return current, invalid("voting_locked", fmt.Sprintf("unknown lock state %d", int(current)))
	}
}

// checkIntent rejects an explicit lock or unlock the current state already satisfies.
func checkIntent(current models.LockState, intent models.LockIntent) error {
	switch intent {
	case "", models.IntentToggle:
		return nil
	case models.IntentLock:
		if current.Locked() {
			return ErrAlreadyInRequestedLockState
		}
	case models.IntentUnlock:
		if !current.Locked() {
			return ErrAlreadyInRequestedLockState
		}
	default:
		return invalid("intent", fmt.Sprintf("unknown intent %q", intent))
	}
	return nil
}
