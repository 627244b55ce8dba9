package conversations

import (
	"errors"
	"fmt"

	"mailtriage/internal/models"
)

// ErrInvalidTransition is returned for a status change the lifecycle forbids
var ErrInvalidTransition = errors.New("invalid conversation transition")

var transitions = map[models.ConversationStatus][]models.ConversationStatus{
	models.ConversationOpen:           {models.ConversationAwaitingClient, models.ConversationClosed},
	models.ConversationAwaitingClient: {models.ConversationOpen, models.ConversationClosed},
}

// CanTransition reports whether a conversation may move from one status to
// another. Staying in an active status is always allowed; closed is terminal.
func CanTransition(from, to models.ConversationStatus) bool {
	if from == to {
		return from.IsActive()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus validates a status coming from the API
func ParseStatus(s string) (models.ConversationStatus, error) {
	switch status := models.ConversationStatus(s); status {
	case models.ConversationOpen, models.ConversationAwaitingClient, models.ConversationClosed:
		return status, nil
	}
	return "", fmt.Errorf("unknown conversation status %q", s)
}

// ValidResolution reports whether r is an accepted resolution value
func ValidResolution(r string) bool {
	return r == models.ResolutionResolved || r == models.ResolutionUnresolved
}
