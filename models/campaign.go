package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// CampaignStatus is the delivery state of a campaign. A campaign starts
// pending and moves to exactly one terminal status once dispatch completes;
// it is never re-dispatched, a retry is a new campaign.
type CampaignStatus string

// Campaign statuses
const (
	CampaignStatusPending   CampaignStatus = "pending"
	CampaignStatusSent      CampaignStatus = "sent"
	CampaignStatusPartial   CampaignStatus = "partial"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusNoTargets CampaignStatus = "no_targets"
)

// Campaign holds the structure for the campaigns collection in mongo. The
// submission fields are written once at creation; the counters and status are
// owned by the dispatch engine and retained indefinitely as the audit record.
type Campaign struct {
	ID            primitive.ObjectID     `json:"_id" bson:"_id,omitempty"`
	Title         string                 `json:"title" bson:"title"`
	Body          string                 `json:"body" bson:"body"`
	Data          map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	Type          string                 `json:"type" bson:"type"`
	ImageURL      string                 `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	DeepLink      string                 `json:"deepLink,omitempty" bson:"deepLink,omitempty"`
	Broadcast     bool                   `json:"broadcast" bson:"broadcast"`
	TargetUserIDs []string               `json:"targetUserIds,omitempty" bson:"targetUserIds,omitempty"`
	TotalTargets  int                    `json:"totalTargets" bson:"totalTargets"`
	SentCount     int                    `json:"sentCount" bson:"sentCount"`
	FailedCount   int                    `json:"failedCount" bson:"failedCount"`
	Status        CampaignStatus         `json:"status" bson:"status"`
	CreatedAt     primitive.DateTime     `json:"createdAt" bson:"createdAt"`
	CompletedAt   *primitive.DateTime    `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// CampaignRequest is the body for the send endpoint
type CampaignRequest struct {
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Data        map[string]interface{} `json:"data"`
	Type        string                 `json:"type"`
	ImageURL    string                 `json:"imageUrl"`
	DeepLink    string                 `json:"deepLink"`
	Broadcast   bool                   `json:"broadcast"`
	TargetUsers []string               `json:"targetUsers"`
}

// DispatchSummary is returned to the caller of the send endpoint once the
// fan-out has run to completion over the full resolved target set.
type DispatchSummary struct {
	CampaignID        string         `json:"campaignId"`
	Status            CampaignStatus `json:"status"`
	TotalTargets      int            `json:"totalTargets"`
	SentCount         int            `json:"sentCount"`
	FailedCount       int            `json:"failedCount"`
	SuccessRate       float64        `json:"successRate"`
	InvalidatedTokens []string       `json:"invalidatedTokens"` // truncated for privacy
}
