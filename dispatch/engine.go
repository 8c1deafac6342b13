package dispatch

import (
	"context"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/models"
)

const (
	defaultWorkers     = 8
	defaultSendTimeout = 15 * time.Second
)

// TargetResolver yields the eligible registrations for a campaign
type TargetResolver interface {
	Resolve(ctx context.Context, campaign *models.Campaign) ([]models.DeviceRegistration, error)
}

// TokenInvalidator batch-retires tokens the gateway reported as permanently dead
type TokenInvalidator interface {
	DeactivateMany(ctx context.Context, tokens []string, reason string) (int64, error)
}

// EventPublisher receives the summary once a campaign reaches a terminal
// status. Implementations must not block the engine.
type EventPublisher interface {
	PublishCampaignCompleted(summary models.DispatchSummary)
}

// Engine orchestrates one campaign: resolve targets, fan out through the
// gateway with per-device isolation, aggregate outcomes, retire dead tokens,
// persist the terminal record. The campaign record it creates is owned
// exclusively by this one invocation.
type Engine struct {
	Campaigns   databases.CampaignDatabase
	Resolver    TargetResolver
	Registry    TokenInvalidator
	Gateway     Gateway
	Events      EventPublisher
	Workers     int
	SendTimeout time.Duration
}

// NewEngine wires an engine with the worker bound taken from
// DISPATCH_WORKERS when set
func NewEngine(campaigns databases.CampaignDatabase, resolver TargetResolver, registry TokenInvalidator, gateway Gateway) *Engine {
	workers := defaultWorkers
	if v, err := strconv.Atoi(os.Getenv("DISPATCH_WORKERS")); err == nil && v > 0 {
		workers = v
	}
	return &Engine{
		Campaigns:   campaigns,
		Resolver:    resolver,
		Registry:    registry,
		Gateway:     gateway,
		Workers:     workers,
		SendTimeout: defaultSendTimeout,
	}
}

// Dispatch runs one campaign to completion and returns its summary. Only
// validation failures and the inability to persist or resolve the campaign
// itself surface as errors; per-device failures are folded into the counters.
func (e *Engine) Dispatch(ctx context.Context, req models.CampaignRequest) (*models.DispatchSummary, error) {
	if req.Title == "" {
		return nil, &models.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if req.Body == "" {
		return nil, &models.ValidationError{Field: "body", Reason: "must not be empty"}
	}

	// persist in pending first so a crash mid-dispatch still leaves an
	// auditable record
	campaign := models.Campaign{
		ID:            primitive.NewObjectID(),
		Title:         req.Title,
		Body:          req.Body,
		Data:          req.Data,
		Type:          req.Type,
		ImageURL:      req.ImageURL,
		DeepLink:      req.DeepLink,
		Broadcast:     req.Broadcast,
		TargetUserIDs: req.TargetUsers,
		Status:        models.CampaignStatusPending,
		CreatedAt:     primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := e.Campaigns.InsertOne(ctx, campaign); err != nil {
		return nil, err
	}

	targets, err := e.Resolver.Resolve(ctx, &campaign)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		summary := e.complete(ctx, &campaign, 0, 0, 0, nil)
		zap.S().Infow("campaign resolved no targets",
			"campaignId", campaign.ID.Hex(),
			"broadcast", campaign.Broadcast,
		)
		return summary, nil
	}

	sent, failed, invalid := e.fanOut(ctx, &campaign, targets)

	invalidated := int64(0)
	if len(invalid) > 0 {
		invalidated, err = e.Registry.DeactivateMany(ctx, invalid, models.DeactivationReasonUnregistered)
		if err != nil {
			// the campaign outcome is still valid; the sweep will catch
			// these tokens again on the next permanent failure
			zap.S().Errorw("failed to deactivate dead tokens",
				"campaignId", campaign.ID.Hex(),
				"tokens", len(invalid),
				"error", err,
			)
		}
	}

	summary := e.complete(ctx, &campaign, len(targets), sent, failed, invalid)
	zap.S().Infow("campaign dispatch complete",
		"campaignId", campaign.ID.Hex(),
		"status", summary.Status,
		"totalTargets", summary.TotalTargets,
		"sent", summary.SentCount,
		"failed", summary.FailedCount,
		"invalidated", invalidated,
	)
	return summary, nil
}

// fanOut sends to every target through a bounded worker pool. Outcome
// aggregation is commutative, so worker ordering does not matter; the
// invalidation set is returned sorted only to keep summaries deterministic.
func (e *Engine) fanOut(ctx context.Context, campaign *models.Campaign, targets []models.DeviceRegistration) (sent, failed int, invalid []string) {
	workers := e.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(targets) {
		workers = len(targets)
	}

	jobs := make(chan models.DeviceRegistration)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for reg := range jobs {
				outcome := e.sendOne(ctx, campaign, reg)
				mu.Lock()
				switch outcome {
				case OutcomeDelivered:
					sent++
				case OutcomePermanent:
					failed++
					invalid = append(invalid, reg.Token)
				default:
					failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, reg := range targets {
		jobs <- reg
	}
	close(jobs)
	wg.Wait()

	sort.Strings(invalid)
	return sent, failed, invalid
}

// sendOne performs a single isolated send with its own timeout and classifies
// the result. It never panics the loop; whatever the gateway does, the
// remaining targets still get their send.
func (e *Engine) sendOne(ctx context.Context, campaign *models.Campaign, reg models.DeviceRegistration) Outcome {
	timeout := e.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := e.Gateway.Send(sendCtx, reg.Token, buildPayload(campaign, reg))
	outcome := Classify(err)
	if err != nil {
		zap.S().Debugw("device send failed",
			"campaignId", campaign.ID.Hex(),
			"token", truncateToken(reg.Token),
			"platform", reg.Platform,
			"permanent", outcome == OutcomePermanent,
			"error", err,
		)
	}
	return outcome
}

// complete persists the terminal counters and status and builds the summary
func (e *Engine) complete(ctx context.Context, campaign *models.Campaign, total, sent, failed int, invalid []string) *models.DispatchSummary {
	status := finalStatus(total, sent, failed)
	now := primitive.NewDateTimeFromTime(time.Now())
	update := bson.M{
		"$set": bson.M{
			"totalTargets": total,
			"sentCount":    sent,
			"failedCount":  failed,
			"status":       status,
			"completedAt":  now,
		},
	}
	if _, err := e.Campaigns.UpdateOne(ctx, bson.M{"_id": campaign.ID}, update); err != nil {
		zap.S().Errorw("failed to persist campaign completion",
			"campaignId", campaign.ID.Hex(),
			"error", err,
		)
	}

	truncated := make([]string, 0, len(invalid))
	for _, token := range invalid {
		truncated = append(truncated, truncateToken(token))
	}

	summary := models.DispatchSummary{
		CampaignID:        campaign.ID.Hex(),
		Status:            status,
		TotalTargets:      total,
		SentCount:         sent,
		FailedCount:       failed,
		SuccessRate:       successRate(total, sent),
		InvalidatedTokens: truncated,
	}
	if e.Events != nil {
		e.Events.PublishCampaignCompleted(summary)
	}
	return &summary
}
