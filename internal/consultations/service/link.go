package service

import (
	"fmt"

	"istishara/pkg/logger"
	"istishara/pkg/sealer"
)

// consultationLink builds the deep link embedded in notifications. The
// consultation ID is sealed together with the recipient so the link only
// resolves for the user it was sent to.
func consultationLink(log *logger.Logger, consultationID, recipientID string) string {
	token, err := sealer.CreateOpaqueToken(consultationID, recipientID)
	if err != nil {
		log.Error("Failed to seal consultation link",
			"consultation_id", consultationID,
			"error", err,
		)
		return fmt.Sprintf("/consultations/%s", consultationID)
	}
	return fmt.Sprintf("/consultations/link/%s", token)
}
