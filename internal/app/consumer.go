/**
 * @description
 * This file contains the consumer for user lifecycle events. The auth side of
 * the platform publishes a `user.created` event when onboarding completes;
 * this consumer provisions the matching zero-balance bronze loyalty profile.
 * Redeliveries are harmless: provisioning is idempotent.
 */

package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// UserCreatedEvent is the payload published by the auth side on onboarding.
type UserCreatedEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

// UserEventConsumer provisions loyalty profiles from user lifecycle events.
type UserEventConsumer struct {
	service *Service
}

// UserEventConsumer returns the consumer bound to this service instance.
func (s *Service) UserEventConsumer() *UserEventConsumer {
	return &UserEventConsumer{service: s}
}

// HandleMessage processes one delivery. The returned bool is the ack decision:
// true acknowledges, false re-queues for retry.
func (c *UserEventConsumer) HandleMessage(body []byte) bool {
	var event UserCreatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("user-consumer: failed to unmarshal payload: %v", err)
		return true
	}

	if event.UserID == uuid.Nil {
		log.Printf("user-consumer: missing user id in event %+v", event)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := c.service.ProvisionProfile(ctx, event.UserID); err != nil {
		log.Printf("user-consumer: provisioning error for user %s: %v", event.UserID, err)
		return false
	}

	return true
}
