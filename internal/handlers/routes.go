package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires all HTTP and websocket routes
func SetupRoutes(ws *WSHandler, present *PresentHandler, presentations *PresentationHandler) *mux.Router {
	router := mux.NewRouter()

	// Real-time hubs
	router.HandleFunc("/presentationHub", ws.HandleWS)
	router.HandleFunc("/presentModeHub", present.HandleWS)

	// Catalog
	router.HandleFunc("/presentations", presentations.ListPresentations).Methods(http.MethodGet)
	router.HandleFunc("/presentations", presentations.CreatePresentation).Methods(http.MethodPost)
	router.HandleFunc("/presentations/{presentationId}/slides", presentations.GetSlides).Methods(http.MethodGet)
	router.HandleFunc("/presentation/modeStatus", presentations.ChangeModeStatus).Methods(http.MethodPost)
	router.HandleFunc("/presentation/modeStatus/check", presentations.CheckStatusMode).Methods(http.MethodPost)

	// Telemetry
	router.Handle("/metrics", promhttp.Handler())

	router.Use(corsMiddleware)
	return router
}

// corsMiddleware allows the browser client to talk to the API from another
// origin
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
