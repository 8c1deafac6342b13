package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tunelink/tunelink-push-api/api"
	"github.com/tunelink/tunelink-push-api/api/scheduler"
	"github.com/tunelink/tunelink-push-api/config"
	"github.com/tunelink/tunelink-push-api/databases"
	"github.com/tunelink/tunelink-push-api/dispatch"
	"github.com/tunelink/tunelink-push-api/models"
	"github.com/tunelink/tunelink-push-api/registry"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	deviceDB := databases.NewDeviceDatabase(a.dbHelper)
	campaignDB := databases.NewCampaignDatabase(a.dbHelper)

	reg := registry.New(deviceDB)
	hub := NewDeliveryHub()
	engine := dispatch.NewEngine(campaignDB, registry.NewResolver(deviceDB), reg, dispatch.NewExpoGateway())
	engine.Events = hub

	d := Device{Registry: reg}
	c := Campaign{Engine: engine, DB: campaignDB}
	st := ServiceToken{DB: databases.NewUserDatabase(a.dbHelper)}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/service-token", http.HandlerFunc(st.CreateServiceTokenHandler)).Methods("POST")

	apiCreate.Handle("/device/register", api.Middleware(http.HandlerFunc(d.RegisterDeviceHandler))).Methods("POST")
	apiCreate.Handle("/device/heartbeat", api.Middleware(http.HandlerFunc(d.HeartbeatHandler))).Methods("PUT")
	apiCreate.Handle("/device/{token}", api.Middleware(http.HandlerFunc(d.DeactivateDeviceHandler))).Methods("DELETE")
	apiCreate.Handle("/user/{user_id}/devices", api.Middleware(http.HandlerFunc(d.DevicesByUserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/notification-settings", api.Middleware(http.HandlerFunc(d.UpdateSettingsHandler))).Methods("PUT")

	apiCreate.Handle("/notifications/send", api.ServiceMiddleware(http.HandlerFunc(c.SendCampaignHandler))).Methods("POST")
	apiCreate.Handle("/notifications", api.Middleware(http.HandlerFunc(c.CampaignsHandler))).Methods("GET")
	apiCreate.Handle("/notifications/{campaign_id}", api.Middleware(http.HandlerFunc(c.CampaignByIDHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/notifications/inbox", api.Middleware(http.HandlerFunc(c.InboxHandler))).Methods("GET")

	apiCreate.Handle("/campaign-images/signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	r.HandleFunc("/ws/deliveries", hub.HandleDeliveryWebSocket)

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("tunelink-push-api has connected to the database")

	// background registry hygiene and reporting
	a.Scheduler = scheduler.NewScheduler(
		registry.New(databases.NewDeviceDatabase(a.dbHelper)),
		databases.NewCampaignDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
