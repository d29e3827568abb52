package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"ipowatch/internal/config"
	"ipowatch/internal/ipo"
	"ipowatch/internal/metrics"
)

const (
	minFutureDays = 1
	maxFutureDays = 90
	runIDHeader   = "X-Run-ID"
)

type Server struct {
	engines        map[string]*ipo.Engine
	ingest         *ipo.IngestSource
	requestTimeout time.Duration
	logger         zerolog.Logger
	validate       *validator.Validate
	now            func() time.Time
}

// NewServer serves the given market engines. ingest may be nil, which
// disables POST /api/listings.
func NewServer(engines []*ipo.Engine, cfg config.Config, ingest *ipo.IngestSource, logger zerolog.Logger) *Server {
	byID := make(map[string]*ipo.Engine, len(engines))
	for _, engine := range engines {
		byID[engine.Market.ID] = engine
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Server{
		engines:        byID,
		ingest:         ingest,
		requestTimeout: timeout,
		logger:         logger.With().Str("component", "http").Logger(),
		validate:       validator.New(),
		now:            time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /api/a-stock", s.handleMarket(ipo.MarketMainland))
	mux.HandleFunc("GET /api/hk-stock", s.handleMarket(ipo.MarketHongKong))
	mux.HandleFunc("GET /api/stocks", s.handleStocks)
	mux.HandleFunc("GET /api/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("GET /report/{market}", s.handleReportHTML)
	mux.HandleFunc("POST /api/listings", s.handleIngest)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /swagger/openapi.yaml", serveSwaggerYAML)
	mux.HandleFunc("GET /swagger", serveSwaggerUI)
	mux.HandleFunc("GET /swagger/", serveSwaggerUI)
	return mux
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "ipowatch",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleMarket(id string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveEnvelope(w, r, id)
	}
}

func (s *Server) handleStocks(w http.ResponseWriter, r *http.Request) {
	s.serveEnvelope(w, r, r.URL.Query().Get("market"))
}

func (s *Server) serveEnvelope(w http.ResponseWriter, r *http.Request, marketID string) {
	engine, report, ok := s.run(w, r, marketID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ipo.NewEnvelope(engine.Market, report))
}

type diagnosticsResponse struct {
	Success     bool             `json:"success"`
	Market      string           `json:"market"`
	RunID       string           `json:"run_id"`
	Today       string           `json:"today"`
	HorizonDays int              `json:"horizon_days"`
	Fetched     int              `json:"fetched"`
	Kept        int              `json:"kept"`
	Dropped     int              `json:"dropped"`
	Current     []string         `json:"current"`
	Future      []string         `json:"future"`
	ByReason    map[string]int   `json:"by_reason"`
	Entries     []ipo.Diagnostic `json:"entries"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	engine, report, ok := s.run(w, r, r.URL.Query().Get("market"))
	if !ok {
		return
	}

	byReason := make(map[string]int)
	for reason, n := range report.Diagnostics.ByReason() {
		byReason[string(reason)] = n
	}
	entries := report.Diagnostics.Entries
	if entries == nil {
		entries = []ipo.Diagnostic{}
	}

	writeJSON(w, http.StatusOK, diagnosticsResponse{
		Success:     true,
		Market:      engine.Market.Label,
		RunID:       report.RunID,
		Today:       report.Today,
		HorizonDays: report.HorizonDays,
		Fetched:     report.Diagnostics.Fetched,
		Kept:        report.Diagnostics.Kept,
		Dropped:     report.Diagnostics.Dropped,
		Current:     recordCodes(report.Current),
		Future:      recordCodes(report.Future),
		ByReason:    byReason,
		Entries:     entries,
	})
}

func (s *Server) handleReportHTML(w http.ResponseWriter, r *http.Request) {
	engine, report, ok := s.run(w, r, r.PathValue("market"))
	if !ok {
		return
	}

	page, err := renderReportPage(engine.Market, report)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", report.RunID).Msg("render report failed")
		writeJSON(w, http.StatusInternalServerError, ipo.NewErrorEnvelope(engine.Market, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}

// run resolves the market, applies query overrides and executes one engine
// run. On failure the error envelope has already been written.
func (s *Server) run(w http.ResponseWriter, r *http.Request, marketID string) (*ipo.Engine, ipo.Report, bool) {
	market, err := ipo.MarketByID(marketID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ipo.ErrorEnvelope{Market: marketID, Error: err.Error()})
		return nil, ipo.Report{}, false
	}
	engine, ok := s.engines[market.ID]
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, ipo.NewErrorEnvelope(market, errors.New("market not configured")))
		return nil, ipo.Report{}, false
	}

	opts, err := parseRunOptions(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ipo.NewErrorEnvelope(market, err))
		return nil, ipo.Report{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	report, err := engine.Run(ctx, opts)
	if report.RunID != "" {
		w.Header().Set(runIDHeader, report.RunID)
	}
	if err != nil {
		status := statusFor(err)
		s.logger.Error().Err(err).Str("run_id", report.RunID).Str("market", market.ID).Int("status", status).Msg("report run failed")
		writeJSON(w, status, ipo.NewErrorEnvelope(market, err))
		return nil, ipo.Report{}, false
	}
	return engine, report, true
}

func parseRunOptions(r *http.Request) (ipo.RunOptions, error) {
	var opts ipo.RunOptions
	values := r.URL.Query()

	if v := values.Get("future_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < minFutureDays || days > maxFutureDays {
			return opts, errors.New("future_days must be an integer between 1 and 90")
		}
		opts.HorizonDays = days
	}

	if v := values.Get("enrich"); v != "" {
		enrich, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("enrich must be a boolean")
		}
		opts.Enrich = &enrich
	}

	return opts, nil
}

// statusFor maps a run error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ipo.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type ingestPayload struct {
	Market            string   `json:"market" validate:"required,oneof=a hk"`
	Code              string   `json:"code" validate:"required,max=16"`
	Name              string   `json:"name" validate:"required,max=128"`
	PrimaryDate       string   `json:"primary_date"`
	ListingDate       string   `json:"listing_date"`
	Window            string   `json:"window"`
	IssuePrice        *float64 `json:"issue_price" validate:"omitempty,gte=0"`
	PriceRange        string   `json:"price_range"`
	IssueQuantity     *float64 `json:"issue_quantity" validate:"omitempty,gte=0"`
	SubscriptionLimit *float64 `json:"subscription_limit" validate:"omitempty,gte=0"`
	LotteryRate       string   `json:"lottery_rate"`
	OfferShares       string   `json:"offer_shares"`
	RaisedAmount      string   `json:"raised_amount"`
	SubscriptionRatio string   `json:"subscription_ratio"`
	Industry          string   `json:"industry"`
	Description       string   `json:"description" validate:"max=4000"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		s.writeError(w, http.StatusServiceUnavailable, "ingest disabled")
		return
	}

	var payload ingestPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	payload.Market = strings.ToLower(strings.TrimSpace(payload.Market))
	payload.Code = strings.TrimSpace(payload.Code)
	if err := s.validate.Struct(payload); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.PrimaryDate == "" && payload.ListingDate == "" && payload.Window == "" {
		s.writeError(w, http.StatusBadRequest, "one of primary_date, listing_date or window is required")
		return
	}

	pruned := s.ingest.PruneOlderThan(s.now())
	replaced := s.ingest.Add(ipo.RawRecord{
		Market:            payload.Market,
		Code:              payload.Code,
		Name:              payload.Name,
		PrimaryDate:       payload.PrimaryDate,
		ListingDate:       payload.ListingDate,
		Window:            payload.Window,
		IssuePrice:        payload.IssuePrice,
		PriceRange:        payload.PriceRange,
		IssueQuantity:     payload.IssueQuantity,
		SubscriptionLimit: payload.SubscriptionLimit,
		LotteryRate:       payload.LotteryRate,
		OfferShares:       payload.OfferShares,
		RaisedAmount:      payload.RaisedAmount,
		SubscriptionRatio: payload.SubscriptionRatio,
		Industry:          payload.Industry,
		Description:       payload.Description,
	})
	s.logger.Info().Str("market", payload.Market).Str("code", payload.Code).Bool("replaced", replaced).Int("pruned", pruned).Msg("listing ingested")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "accepted",
		"market":   payload.Market,
		"code":     payload.Code,
		"replaced": replaced,
		"stored":   s.ingest.Len(),
	})
}

func recordCodes(records []ipo.Record) []string {
	codes := make([]string, 0, len(records))
	for _, rec := range records {
		codes = append(codes, rec.Code)
	}
	sort.Strings(codes)
	return codes
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
