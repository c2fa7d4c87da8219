package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeGrantsReplaced = "access.grants_replaced"
	EventTypeAccessDenied   = "access.denied"
	EventTypeUserLoggedIn   = "auth.logged_in"
)

type GrantsReplacedEvent struct {
	BaseEvent
	UserID    int64   `json:"user_id"`
	ActorID   int64   `json:"actor_id"`
	ModuleIDs []int64 `json:"module_ids"`
}

func NewGrantsReplacedEvent(userID, actorID int64, moduleIDs []int64) *GrantsReplacedEvent {
	return &GrantsReplacedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeGrantsReplaced,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":    userID,
				"actor_id":   actorID,
				"module_ids": moduleIDs,
			},
		},
		UserID:    userID,
		ActorID:   actorID,
		ModuleIDs: moduleIDs,
	}
}

// AccessDeniedEvent records a gate denial. Reason is the gate outcome,
// "denied" or "misconfigured".
type AccessDeniedEvent struct {
	BaseEvent
	UserID    int64  `json:"user_id"`
	Namespace string `json:"namespace"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

func NewAccessDeniedEvent(userID int64, namespace, action, reason string) *AccessDeniedEvent {
	return &AccessDeniedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAccessDenied,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":   userID,
				"namespace": namespace,
				"action":    action,
				"reason":    reason,
			},
		},
		UserID:    userID,
		Namespace: namespace,
		Action:    action,
		Reason:    reason,
	}
}

type UserLoggedInEvent struct {
	BaseEvent
	UserID        int64  `json:"user_id"`
	SourceAddress string `json:"source_address"`
}

func NewUserLoggedInEvent(userID int64, sourceAddress string) *UserLoggedInEvent {
	return &UserLoggedInEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserLoggedIn,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":        userID,
				"source_address": sourceAddress,
			},
		},
		UserID:        userID,
		SourceAddress: sourceAddress,
	}
}
