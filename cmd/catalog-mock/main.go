package main

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

// catalogFile mirrors the JSON shape served by /catalog/* on the real service.
type catalogFile struct {
	Metrics       []json.RawMessage `json:"metrics"`
	Thresholds    []json.RawMessage `json:"thresholds"`
	ImageStatuses []json.RawMessage `json:"imageStatuses"`
}

var (
	app     = kingpin.New("catalog-mock", "Serve a static SDQA catalog over HTTP.")
	port    = app.Flag("port", "port to listen on").Default("9099").String()
	data    = app.Flag("data", "path to mock catalog file").Default("mock-catalog.json").String()
	apiKey  = app.Flag("api-key", "require this X-API-Key header").Envar("SDQA_CATALOG_API_KEY").String()
	verbose = app.Flag("log", "enable request logging").Bool()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	logger := logrus.New()

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.WithError(err).Fatal("read mock data")
	}

	var payload catalogFile
	if err := json.Unmarshal(file, &payload); err != nil {
		logger.WithError(err).Fatal("parse mock data")
	}

	mux := http.NewServeMux()
	mux.Handle("/catalog/metrics", serveItems(logger, payload.Metrics))
	mux.Handle("/catalog/thresholds", serveItems(logger, payload.Thresholds))
	mux.Handle("/catalog/image-statuses", serveItems(logger, payload.ImageStatuses))

	addr := ":" + *port
	logger.WithFields(logrus.Fields{
		"addr":       addr,
		"metrics":    len(payload.Metrics),
		"thresholds": len(payload.Thresholds),
	}).Info("mock catalog listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func serveItems(logger logrus.FieldLogger, items []json.RawMessage) http.Handler {
	if items == nil {
		items = []json.RawMessage{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if *verbose {
			logger.WithField("path", r.URL.Path).Info("request")
		}
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if *apiKey != "" && r.Header.Get("X-API-Key") != *apiKey {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"items": items}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
