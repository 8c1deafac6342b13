package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tunelink/tunelink-push-api/config"
	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/dispatch"
	"github.com/tunelink/tunelink-push-api/models"
)

// Campaign exported for testing purposes
type Campaign struct {
	Engine *dispatch.Engine
	DB     databases.CampaignDatabase
}

// SendCampaignHandler submits a campaign and blocks until the fan-out has run
// to completion, returning the dispatch summary. Per-device failures never
// surface here; the response is always a definitive summary unless the input
// itself is malformed.
func (c Campaign) SendCampaignHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	summary, err := c.Engine.Dispatch(r.Context(), req)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			config.ErrorStatus("failed to submit campaign", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to dispatch campaign", http.StatusInternalServerError, w, err)
		return
	}

	b, err := json.Marshal(summary)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CampaignsHandler returns paginated campaign history, newest first,
// optionally filtered by status and type
func (c Campaign) CampaignsHandler(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}
	if campaignType := r.URL.Query().Get("type"); campaignType != "" {
		filter["type"] = campaignType
	}

	dbResp, err := c.DB.FindNewestFirst(r.Context(), filter, limit, page)
	if err != nil {
		config.ErrorStatus("failed to get campaigns", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Campaign{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CampaignByIDHandler returns a campaign by ID
func (c Campaign) CampaignByIDHandler(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["campaign_id"]

	cID, err := primitive.ObjectIDFromHex(campaignID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := c.DB.FindOne(r.Context(), bson.M{"_id": cID})
	if err != nil {
		config.ErrorStatus("failed to get campaign by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// InboxHandler returns the campaigns visible to one user: those explicitly
// targeting them plus every broadcast, newest first
func (c Campaign) InboxHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	filter := bson.M{
		"$or": []bson.M{
			{"broadcast": true},
			{"targetUserIds": userID},
		},
	}

	dbResp, err := c.DB.FindNewestFirst(r.Context(), filter, limit, page)
	if err != nil {
		config.ErrorStatus("failed to get user inbox", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Campaign{}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
