package registry

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/models"
)

// Resolver turns a campaign's targeting fields into the concrete set of
// eligible device registrations. It is a deliberate seam between target
// selection policy and delivery mechanics: quiet hours, rate limiting or
// per-user token collapsing would land here without touching the engine.
type Resolver struct {
	DB databases.DeviceDatabase
}

// NewResolver returns a Resolver over the given device database
func NewResolver(db databases.DeviceDatabase) *Resolver {
	return &Resolver{DB: db}
}

// Resolve returns the ordered, deduplicated-by-token list of active
// registrations matching the campaign's targets and opted in to its type.
// An explicit target list that is empty resolves to nothing; that is distinct
// from broadcast, which matches every active registration. A registration
// with no recorded setting for the type counts as opted in.
func (r *Resolver) Resolve(ctx context.Context, campaign *models.Campaign) ([]models.DeviceRegistration, error) {
	if !campaign.Broadcast && len(campaign.TargetUserIDs) == 0 {
		return nil, nil
	}

	filter := bson.M{"active": true}
	if campaign.Type != "" {
		filter["settings."+campaign.Type] = bson.M{"$ne": false}
	}
	if !campaign.Broadcast {
		filter["userId"] = bson.M{"$in": campaign.TargetUserIDs}
	}

	regs, err := r.DB.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	// A token can surface twice if a registration raced a retry; never hand
	// the same token to the engine more than once per resolution.
	seen := make(map[string]struct{}, len(regs))
	deduped := regs[:0]
	for _, reg := range regs {
		if _, ok := seen[reg.Token]; ok {
			continue
		}
		seen[reg.Token] = struct{}{}
		deduped = append(deduped, reg)
	}
	return deduped, nil
}
