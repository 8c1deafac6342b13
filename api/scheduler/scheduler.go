// Package scheduler runs the periodic registry hygiene and reporting jobs.
// Dispatch itself is always request-triggered; nothing here sends pushes.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/models"
	"github.com/tunelink/tunelink-push-api/registry"
	templates "github.com/tunelink/tunelink-push-api/templates/html"
)

// staleDeviceCutoff is how long a registration may sit without a heartbeat
// before the sweep retires it
const staleDeviceCutoff = 180 * 24 * time.Hour

// Scheduler handles the periodic background jobs for the push service
type Scheduler struct {
	cron       *cron.Cron
	Registry   *registry.Registry
	CDB        databases.CampaignDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string

	lastSweepCount atomic.Int64
}

// NewScheduler creates a new scheduler instance
func NewScheduler(reg *registry.Registry, cDB databases.CampaignDatabase, lockDB databases.SchedulerLockDatabase) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Registry:   reg,
		CDB:        cDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Retire registrations with no recent activity, nightly at 4 AM UTC
	_, err := s.cron.AddFunc("0 4 * * *", s.sweepStaleDevices)
	if err != nil {
		zap.S().Errorw("failed to register stale device sweep", "error", err)
	}

	// Email the daily delivery digest to ops at 7 AM UTC
	_, err = s.cron.AddFunc("0 7 * * *", s.sendDeliveryDigest)
	if err != nil {
		zap.S().Errorw("failed to register delivery digest job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Push service scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Push service scheduler stopped")
}

// sweepStaleDevices deactivates registrations whose last activity is older
// than the cutoff so broadcasts stop wasting sends on dead installs
func (s *Scheduler) sweepStaleDevices() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "stale_device_sweep", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for stale device sweep", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Stale device sweep already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "stale_device_sweep", s.instanceID)

	cutoff := time.Now().Add(-staleDeviceCutoff)
	swept, err := s.Registry.SweepStale(ctx, cutoff)
	if err != nil {
		zap.S().Errorw("stale device sweep failed", "error", err)
		return
	}
	s.lastSweepCount.Store(swept)

	zap.S().Infow("Stale device sweep complete",
		"instance", s.instanceID,
		"swept", swept,
		"cutoff", cutoff,
	)
}

// sendDeliveryDigest emails ops a summary of the last day's campaigns
func (s *Scheduler) sendDeliveryDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "delivery_digest", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for delivery digest", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Delivery digest already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "delivery_digest", s.instanceID)

	opsEmail := os.Getenv("OPS_EMAIL")
	if opsEmail == "" {
		zap.S().Debug("OPS_EMAIL not set, skipping delivery digest")
		return
	}

	since := primitive.NewDateTimeFromTime(time.Now().Add(-24 * time.Hour))
	window := bson.M{"createdAt": bson.M{"$gte": since}}

	counts := map[models.CampaignStatus]int64{}
	var total int64
	for _, status := range []models.CampaignStatus{
		models.CampaignStatusSent,
		models.CampaignStatusPartial,
		models.CampaignStatusFailed,
		models.CampaignStatusNoTargets,
	} {
		n, err := s.CDB.CountDocuments(ctx, bson.M{"createdAt": window["createdAt"], "status": status})
		if err != nil {
			zap.S().Errorw("failed to count campaigns for digest", "status", status, "error", err)
			return
		}
		counts[status] = n
		total += n
	}

	htmlContent := templates.RenderDeliveryDigestEmail(
		total,
		counts[models.CampaignStatusSent],
		counts[models.CampaignStatusPartial],
		counts[models.CampaignStatusFailed],
		counts[models.CampaignStatusNoTargets],
		s.lastSweepCount.Load(),
	)
	plainText := fmt.Sprintf("Campaigns dispatched in the last 24 hours: %d (sent %d, partial %d, failed %d, no targets %d)",
		total,
		counts[models.CampaignStatusSent],
		counts[models.CampaignStatusPartial],
		counts[models.CampaignStatusFailed],
		counts[models.CampaignStatusNoTargets],
	)

	if err := s.sendEmail(opsEmail, "Ops", "Daily push delivery digest", htmlContent, plainText); err != nil {
		zap.S().Errorw("failed to send delivery digest", "error", err)
		return
	}

	zap.S().Infow("Delivery digest sent", "instance", s.instanceID, "campaigns", total)
}

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("Tunelink", "no-reply@tunelink.app")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid status %d", response.StatusCode)
	}
	return nil
}
