// Package main is the entry point for the stable-yield rebalancer, a
// service that moves stablecoin principal between lending venues and
// transfer domains when the risk-adjusted yield justifies it.
package main

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/stable-yield-rebalancer/internal/attest"
	"github.com/yourorg/stable-yield-rebalancer/internal/circuit"
	"github.com/yourorg/stable-yield-rebalancer/internal/config"
	"github.com/yourorg/stable-yield-rebalancer/internal/events"
	"github.com/yourorg/stable-yield-rebalancer/internal/ledger"
	"github.com/yourorg/stable-yield-rebalancer/internal/model"
	"github.com/yourorg/stable-yield-rebalancer/internal/oracle"
	"github.com/yourorg/stable-yield-rebalancer/internal/otel"
	"github.com/yourorg/stable-yield-rebalancer/internal/rebalance"
	"github.com/yourorg/stable-yield-rebalancer/internal/transfer"
	"github.com/yourorg/stable-yield-rebalancer/internal/types"
	"github.com/yourorg/stable-yield-rebalancer/internal/venue"
)

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// pauseSwitch is the admin pause capability shared by the orchestrator
// and the transfer manager.
type pauseSwitch struct {
	paused atomic.Bool
}

// Paused reports whether mutating operations are currently blocked.
func (p *pauseSwitch) Paused() bool { return p.paused.Load() }

// Set flips the pause state.
func (p *pauseSwitch) Set(v bool) { p.paused.Store(v) }

// Server is the rebalancer service instance.
type Server struct {
	cfg config.Config

	orchestrator *rebalance.Orchestrator
	strategies   *rebalance.StrategyStore
	transfers    *transfer.Manager
	domains      *transfer.Registry
	venues       *venue.Registry
	balances     *ledger.Balances
	breaker      *circuit.Breaker
	oracle       *oracle.Client
	publisher    events.Publisher
	pause        *pauseSwitch
	rateLimit    *rate.Limiter
	metrics      *serverMetrics

	server *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rebalancesTotal  *prometheus.CounterVec
	transfersTotal   *prometheus.CounterVec
	circuitState     prometheus.Gauge
	pendingTransfers prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rebalancer_requests_total",
				Help: "Total number of HTTP requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rebalancer_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		rebalancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rebalancer_rebalances_total",
				Help: "Total number of rebalance executions by result",
			},
			[]string{"result"},
		),
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rebalancer_transfers_total",
				Help: "Total number of cross-domain transfers by type",
			},
			[]string{"type"},
		),
		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rebalancer_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
		pendingTransfers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rebalancer_pending_transfers",
				Help: "Number of transfers awaiting completion",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.rebalancesTotal,
		m.transfersTotal,
		m.circuitState,
		m.pendingTransfers,
	)

	return m
}

// main is the entry point for the application
func main() {
	setupLogging()

	cfg := config.Load()

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	server := NewServer(cfg)
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	logrus.Info("Logging configured")
}

// NewServer wires every component from configuration.
func NewServer(cfg config.Config) *Server {
	clock := types.Clock(time.Now)
	pause := &pauseSwitch{}

	domains := transfer.NewRegistry()
	registerDefaultDomains(domains)

	balances := ledger.NewBalances()
	transfers := transfer.NewManager(transfer.Options{
		Registry:        domains,
		Fees:            transfer.NewFeeSchedule(cfg.DefaultFastFeeBps, cfg.MaxFastFeeBps),
		Balances:        balances,
		Store:           attest.NewStore(),
		Attester:        attest.DigestAttester{Delay: cfg.AttestationDelay},
		Clock:           clock,
		Pauser:          pause,
		FastSettleDelay: cfg.FastSettleDelay,
	})

	venues := venue.NewRegistry()
	registerVenues(venues, cfg)

	breaker := circuit.New(circuit.Thresholds{
		MaxAPYBps:       cfg.MaxAPYBps,
		MaxTVLChangeBps: cfg.MaxTVLChangeBps,
		MinVenueCount:   cfg.MinVenueCount,
	}, clock).WithResetDelay(cfg.CircuitResetDelay)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	var oracleClient *oracle.Client
	if cfg.OracleURL != "" {
		oracleClient = oracle.New(cfg.OracleURL, cfg.APIKeys["oracle"], cfg.MaxOracleAge, clock)
	}

	strategies := rebalance.NewStrategyStore()
	orchestrator := rebalance.NewOrchestrator(rebalance.Options{
		Strategies: strategies,
		Venues:     venues,
		Breaker:    breaker,
		Limits: rebalance.Limits{
			Cooldown:          cfg.Cooldown,
			DailyCap:          cfg.DailyCap,
			MinAmount:         cfg.MinRebalance,
			MaxAmount:         cfg.MaxRebalance,
			MaxSlippageBps:    cfg.MaxSlippageBps,
			ResourceCost:      cfg.RebalanceCost,
			EvaluationHorizon: cfg.EvaluationHorizon,
		},
		Clock:     clock,
		Pauser:    pause,
		Publisher: publisher,
	})

	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		strategies:   strategies,
		transfers:    transfers,
		domains:      domains,
		venues:       venues,
		balances:     balances,
		breaker:      breaker,
		oracle:       oracleClient,
		publisher:    publisher,
		pause:        pause,
		rateLimit:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		metrics:      registerMetrics(),
	}

	logrus.WithFields(logrus.Fields{
		"port":          cfg.Port,
		"venues":        venues.Names(),
		"kafka":         cfg.KafkaEnabled,
		"oracle":        cfg.OracleURL != "",
		"cooldown":      cfg.Cooldown,
		"daily_cap":     cfg.DailyCap.String(),
		"max_slippage":  cfg.MaxSlippageBps,
		"fast_fee_bps":  cfg.DefaultFastFeeBps,
		"fast_settle":   cfg.FastSettleDelay,
	}).Info("Server initialized")

	return s
}

// registerDefaultDomains seeds the well-known transfer domains.
func registerDefaultDomains(domains *transfer.Registry) {
	minTransfer := big.NewInt(1_000_000)
	maxTransfer := new(big.Int).Mul(big.NewInt(1_000_000_000), big.NewInt(1_000_000))

	entries := []model.DomainInfo{
		{Domain: types.DomainEthereum, ChainID: 1, FastEnabled: true},
		{Domain: types.DomainAvalanche, ChainID: 43114, FastEnabled: true},
		{Domain: types.DomainOptimism, ChainID: 10, FastEnabled: true},
		{Domain: types.DomainArbitrum, ChainID: 42161, FastEnabled: true},
		{Domain: types.DomainBase, ChainID: 8453, FastEnabled: true},
		{Domain: types.DomainPolygon, ChainID: 137, FastEnabled: false},
	}
	for _, info := range entries {
		info.Supported = true
		info.Enabled = true
		info.MinTransfer = minTransfer
		info.MaxTransfer = maxTransfer
		if err := domains.Register(info); err != nil {
			logrus.Fatalf("Failed to register domain %d: %v", info.Domain, err)
		}
	}
}

// registerVenues builds adapters from configured gateway URLs, falling
// back to simulated venues so the service stays usable in development.
func registerVenues(venues *venue.Registry, cfg config.Config) {
	if len(cfg.VenueURLs) > 0 {
		for name, url := range cfg.VenueURLs {
			venues.Register(venue.NewHTTPAdapter(
				name, types.DomainEthereum, url, cfg.APIKeys[name], cfg.RequestTimeout))
		}
		return
	}

	logrus.Warn("No venue gateways configured; registering simulated venues")
	tvl := new(big.Int).Mul(big.NewInt(2_000_000_000), big.NewInt(1_000_000))
	base := model.VenueMetrics{
		TotalValueLocked:      tvl,
		UtilizationBps:        7500,
		AgeDays:               900,
		MaxWithdrawable:       new(big.Int).Div(tvl, big.NewInt(4)),
		Audited:               true,
		AuditQualityBps:       9000,
		HasGovernanceToken:    true,
		CentralizationRiskBps: 2000,
		CollectedAt:           time.Now().Unix(),
	}

	aave := base
	aave.HistoricalYieldBps = 400
	venues.Register(venue.NewSimAdapter("aave-v3", types.DomainEthereum, aave))

	compound := base
	compound.TotalValueLocked = new(big.Int).Set(tvl)
	compound.MaxWithdrawable = new(big.Int).Div(tvl, big.NewInt(4))
	compound.HistoricalYieldBps = 450
	venues.Register(venue.NewSimAdapter("compound-v3", types.DomainEthereum, compound))
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/rebalance", s.handleRebalanceTrigger)
	mux.HandleFunc("/rebalance/submit", s.handleRebalanceSubmit)
	mux.HandleFunc("/rebalance/execute", s.handleRebalanceExecute)
	mux.HandleFunc("/rebalance/batch", s.handleRebalanceBatch)
	mux.HandleFunc("/rebalance/cancel", s.handleRebalanceCancel)
	mux.HandleFunc("/strategy", s.handleStrategy)
	mux.HandleFunc("/position", s.handlePosition)
	mux.HandleFunc("/balance", s.handleBalance)
	mux.HandleFunc("/transfer", s.handleTransfer)
	mux.HandleFunc("/transfer/fast", s.handleTransferFast)
	mux.HandleFunc("/transfer/complete", s.handleTransferComplete)
	mux.HandleFunc("/attestation", s.handleAttestation)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/circuit", s.handleCircuit)
	mux.HandleFunc("/pause", s.handlePause)

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}
	if err := s.publisher.Close(); err != nil {
		logrus.Warnf("Event publisher shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}
