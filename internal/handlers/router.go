package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/assetledger/internal/accounts"
	"github.com/xelth-com/assetledger/internal/apperr"
	"github.com/xelth-com/assetledger/internal/buildinfo"
	"github.com/xelth-com/assetledger/internal/config"
	"github.com/xelth-com/assetledger/internal/ledger"
	"github.com/xelth-com/assetledger/internal/middleware"
	"github.com/xelth-com/assetledger/internal/qr"
	"github.com/xelth-com/assetledger/internal/registry"
	"github.com/xelth-com/assetledger/internal/reports"
	"github.com/xelth-com/assetledger/internal/settings"
	"github.com/xelth-com/assetledger/internal/storage"
	"github.com/xelth-com/assetledger/internal/utils"
	"github.com/xelth-com/assetledger/internal/websocket"
)

// Deps are the services the HTTP layer dispatches to
type Deps struct {
	Config   *config.Config
	Log      *logrus.Logger
	Ledger   *ledger.Service
	QR       *qr.Service
	ScanFlag *settings.ScanFlag
	Reports  *reports.Service
	Registry *registry.Service
	Accounts *accounts.Service
	Store    storage.Store
	Hub      *websocket.Hub
	Now      func() time.Time
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	Deps
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(d Deps) *Router {
	if d.Now == nil {
		d.Now = time.Now
	}
	r := &Router{
		Router: mux.NewRouter(),
		Deps:   d,
	}
	secret := d.Config.JWTSecret

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Public scan endpoint; a staff token upgrades unassigned tags to a bind prompt
	scan := r.PathPrefix("/scan").Subrouter()
	scan.Use(middleware.OptionalAuth(secret))
	scan.HandleFunc("/{hash}", r.publicScan).Methods("GET")

	// Auth routes
	r.HandleFunc("/api/auth/login", r.login).Methods("POST")

	// Live activity feed; browsers pass the token as ?token=
	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(middleware.Auth(secret))
	ws.HandleFunc("/activity", r.activity).Methods("GET")

	// Authenticated API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(secret))
	api.HandleFunc("/me", r.me).Methods("GET")
	api.HandleFunc("/dashboard", r.dashboard).Methods("GET")
	api.HandleFunc("/export", r.exportCSV).Methods("GET")
	api.HandleFunc("/documents/{ref}", r.document).Methods("GET")

	api.HandleFunc("/assets", r.listAssets).Methods("GET")
	api.HandleFunc("/assets", r.purchaseAsset).Methods("POST")
	api.HandleFunc("/assets/{id:[0-9]+}", r.getAsset).Methods("GET")
	api.HandleFunc("/assets/{id:[0-9]+}/history", r.assetHistory).Methods("GET")
	api.HandleFunc("/assets/{id:[0-9]+}/actions", r.assetAction).Methods("POST")
	api.HandleFunc("/assets/{id:[0-9]+}/qr/generate", r.generateQR).Methods("POST")
	api.HandleFunc("/assets/{id:[0-9]+}/qr/toggle", r.toggleQR).Methods("POST")

	api.HandleFunc("/branches", r.listBranches).Methods("GET")
	api.HandleFunc("/branches", r.createBranch).Methods("POST")
	api.HandleFunc("/branches/{id:[0-9]+}/employees", r.branchEmployees).Methods("GET")
	api.HandleFunc("/employees", r.listEmployees).Methods("GET")
	api.HandleFunc("/employees", r.createEmployee).Methods("POST")
	api.HandleFunc("/employees/{id:[0-9]+}", r.getEmployee).Methods("GET")
	api.HandleFunc("/employees/{id:[0-9]+}/resign", r.resignEmployee).Methods("POST")
	api.HandleFunc("/employees/{id:[0-9]+}/activate", r.activateEmployee).Methods("POST")

	api.HandleFunc("/qr/manage", r.manageQR).Methods("GET")
	api.HandleFunc("/qr/batch", r.generateBatch).Methods("POST")
	api.HandleFunc("/qr/link", r.linkQR).Methods("POST")
	api.HandleFunc("/qr/print", r.printStickers).Methods("POST")
	api.HandleFunc("/qr/{hash}/png", r.qrPNG).Methods("GET")

	// Admin routes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/transactions", r.transactions).Methods("GET")
	admin.HandleFunc("/history/{id:[0-9]+}/revert", r.revert).Methods("POST")
	admin.HandleFunc("/assets/{id:[0-9]+}/qr/reset", r.resetQR).Methods("POST")
	admin.HandleFunc("/assets/{id:[0-9]+}/qr/reassign", r.reassignQR).Methods("POST")
	admin.HandleFunc("/scans", r.scanHistory).Methods("GET")
	admin.HandleFunc("/settings/scan", r.getScanFlag).Methods("GET")
	admin.HandleFunc("/settings/scan", r.setScanFlag).Methods("PUT")
	admin.HandleFunc("/settings/scan/toggle", r.toggleScanFlag).Methods("POST")
	admin.HandleFunc("/users", r.listUsers).Methods("GET")
	admin.HandleFunc("/users", r.createUser).Methods("POST")
	admin.HandleFunc("/users/{id:[0-9]+}", r.deleteUser).Methods("DELETE")
	admin.HandleFunc("/users/{id:[0-9]+}/password", r.resetPassword).Methods("POST")

	return r
}

// Handler wraps the router with CORS, request logging and panic recovery
func (r *Router) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   r.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	return middleware.RequestLogger(r.Log)(middleware.Recover(c.Handler(r.Router)))
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "ok",
		"build":           buildinfo.Current(),
		"activityClients": r.Hub.ClientCount(),
	})
}

func (r *Router) activity(w http.ResponseWriter, req *http.Request) {
	websocket.ServeWs(r.Hub, w, req)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondErr maps a service error to its status. Internal causes are logged,
// never sent.
func respondErr(w http.ResponseWriter, req *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		utils.LoggerFromContext(req.Context()).WithError(err).Error("❌ request failed")
	}
	respondError(w, status, apperr.Message(err))
}

// decodeJSON reads a JSON body into dst
func decodeJSON(req *http.Request, dst interface{}) error {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return apperr.Invalid("Invalid request payload")
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty
func decodeOptionalJSON(req *http.Request, dst interface{}) error {
	if req.Body == nil {
		return nil
	}
	err := json.NewDecoder(req.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.Invalid("Invalid request payload")
}

// pathID reads a numeric route variable
func pathID(req *http.Request, name string) (uint, error) {
	v, err := strconv.ParseUint(mux.Vars(req)[name], 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Invalid("invalid %s", name)
	}
	return uint(v), nil
}

// queryUint reads an optional numeric query parameter
func queryUint(req *http.Request, name string) (*uint, error) {
	s := req.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, apperr.Invalid("invalid %s", name)
	}
	u := uint(v)
	return &u, nil
}

func queryPage(req *http.Request) int {
	p, _ := strconv.Atoi(req.URL.Query().Get("page"))
	return p
}

// actorID is the authenticated user id for audit columns
func actorID(req *http.Request) *uint {
	a := middleware.ActorFromContext(req.Context())
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}
