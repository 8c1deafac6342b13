// Package dispatch drives a campaign from pending to a terminal status,
// isolating every per-device send so one failure never aborts the fan-out.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/tunelink/tunelink-push-api/models"
)

// Payload is one platform-shaped notification unit handed to the gateway
type Payload struct {
	Title     string
	Body      string
	Data      map[string]interface{}
	Sound     string
	ChannelID string
	Priority  string
	ImageURL  string
	DeepLink  string
}

// Gateway is the single network boundary of the engine. Send returns nil on
// delivery; a failed send returns an error classifiable by Classify. The wire
// protocol behind it is the gateway's concern.
type Gateway interface {
	Send(ctx context.Context, token string, payload Payload) error
}

// Outcome tags the result of one per-device send attempt
type Outcome int

// Send outcomes
const (
	OutcomeDelivered Outcome = iota
	OutcomeTransient
	OutcomePermanent
)

// PermanentError means the gateway asserts the token will never work again.
// It is the only evidence that justifies retiring a registration.
type PermanentError struct {
	Code string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery failure: %s", e.Code)
}

// TransientError is any retryable condition: timeouts, rate limits, server
// errors, a payload the gateway accepted but could not deliver.
type TransientError struct {
	Code string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient delivery failure: %s", e.Code)
}

// Classify maps a gateway send result onto the three-way outcome the engine
// aggregates. Anything unrecognized, including context timeouts, counts as
// transient; a timeout is never sufficient evidence to deactivate a token.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeDelivered
	}
	var perm *PermanentError
	if errors.As(err, &perm) {
		return OutcomePermanent
	}
	return OutcomeTransient
}

// buildPayload shapes the campaign content for one device. The two platforms
// want different envelope fields: iOS a sound, Android a delivery channel.
func buildPayload(campaign *models.Campaign, reg models.DeviceRegistration) Payload {
	p := Payload{
		Title:    campaign.Title,
		Body:     campaign.Body,
		Data:     campaign.Data,
		Priority: "high",
		ImageURL: campaign.ImageURL,
		DeepLink: campaign.DeepLink,
	}
	switch reg.Platform {
	case models.PlatformIOS:
		p.Sound = "default"
	case models.PlatformAndroid:
		p.ChannelID = "default"
	}
	return p
}
