package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"posd/config"
	"posd/core/genesis"
	"posd/core/pos"
	"posd/crypto"
	nativeparams "posd/native/params"
	"posd/observability/logging"
	telemetry "posd/observability/otel"
	"posd/storage"
)

const (
	envPrefix        = "POSD_"
	adminJWTSignEnv  = envPrefix + "ADMIN_JWT_SECRET"
	epochIntervalEnv = envPrefix + "EPOCH_INTERVAL"

	validatorKeystorePassphraseEnv = envPrefix + "VALIDATOR_KEYSTORE_PASSPHRASE"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFile := flag.String("genesis", "", "Path to a genesis document, applied only when no epoch has been recorded yet")
	adminListen := flag.String("listen-admin", "", "Override the admin HTTP listen address from config")
	validatorKeystore := flag.String("validator-keystore", "", "Path to an Ethereum v3 keystore file holding this node's validator signing key")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envPrefix + "ENV"))
	logger := logging.Setup("posd", env)

	if *validatorKeystore != "" {
		passphrase := os.Getenv(validatorKeystorePassphraseEnv)
		key, err := crypto.LoadFromKeystore(*validatorKeystore, passphrase)
		if err != nil {
			logger.Error("validator keystore unlock failed", "error", err)
			os.Exit(1)
		}
		logger.Info("validator signing key unlocked", "address", key.PubKey().Address().String())
	}

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if v := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "posd",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *adminListen != "" {
		cfg.AdminAddress = *adminListen
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open leveldb failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := pos.NewStore(db)
	paramStore := nativeparams.NewStore(store)

	engine, err := bootstrap(store, paramStore, cfg, *genesisFile, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := &daemon{engine: engine, paramStore: paramStore, cfg: cfg, logger: logger}

	epochInterval := 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv(epochIntervalEnv)); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			epochInterval = parsed
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.runEpochTicker(ctx, epochInterval)
	}()
	go func() {
		defer wg.Done()
		d.serveAdmin(ctx)
	}()

	wg.Wait()
	logger.Info("posd shut down cleanly")
}

// bootstrap loads the engine from the existing store, applying the genesis
// document only the first time the node ever starts (no current epoch
// recorded yet) — the same "apply once, resume thereafter" discipline
// cmd/consensusd applies to its own genesis file.
func bootstrap(store *pos.Store, paramStore *nativeparams.Store, cfg *config.Config, genesisPath string, logger *slog.Logger) (*pos.Engine, error) {
	found, err := store.HasCurrentEpoch()
	if err != nil {
		return nil, fmt.Errorf("check existing epoch: %w", err)
	}
	if found {
		staking := cfg.Staking
		if persisted, err := paramStore.Staking(); err == nil && persisted.PipelineLen != 0 {
			staking = persisted
		}
		params, err := pos.ParamsFromConfig(staking)
		if err != nil {
			return nil, fmt.Errorf("resume: staking params: %w", err)
		}
		return pos.NewEngine(store, params), nil
	}

	if genesisPath == "" {
		return nil, fmt.Errorf("no recorded epoch and no --genesis file provided")
	}
	spec, err := genesis.LoadSpec(genesisPath)
	if err != nil {
		return nil, err
	}
	if spec.Staking.PipelineLen == 0 {
		spec.Staking = cfg.Staking
	}
	engine, err := genesis.Apply(store, spec)
	if err != nil {
		return nil, err
	}
	if err := paramStore.SetStaking(spec.Staking); err != nil {
		return nil, fmt.Errorf("persist genesis staking params: %w", err)
	}
	return engine, nil
}

type daemon struct {
	mu         sync.Mutex
	engine     *pos.Engine
	paramStore *nativeparams.Store
	cfg        *config.Config
	logger     *slog.Logger
}

// runEpochTicker drives the engine's single epoch-transition hook on a fixed
// wall-clock cadence. Every mutation against the engine — this ticker and
// the admin mutation handlers alike — runs under the daemon's mutex so the
// engine's own execution model stays one linearizable sequence.
func (d *daemon) runEpochTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.mu.Lock()
			pauses, _ := d.paramStore.Pauses()
			if pauses.Staking {
				d.mu.Unlock()
				continue
			}
			newEpoch, err := d.engine.AdvanceEpoch()
			d.mu.Unlock()
			if err != nil {
				d.logger.Error("epoch advance failed", "error", err)
				continue
			}
			d.logger.Info("epoch advanced", "epoch", newEpoch)
		}
	}
}

func (d *daemon) serveAdmin(ctx context.Context) {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/epoch", d.handleGetEpoch)
	r.Get("/v1/validators/{addr}", d.handleGetValidator)
	r.Get("/v1/sets/{name}", d.handleGetSet)

	r.Group(func(r chi.Router) {
		r.Use(d.requireAdminAuth)
		r.Post("/v1/evidence", d.handlePostEvidence)
		r.Post("/v1/epoch/advance", d.handlePostAdvance)
		r.Post("/v1/params", d.handlePostParams)
	})

	srv := &http.Server{Addr: d.cfg.AdminAddress, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	d.logger.Info("admin http listening", "addr", d.cfg.AdminAddress)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		d.logger.Error("admin http server error", "error", err)
	}
}

// requireAdminAuth validates an HS256 bearer token against POSD_ADMIN_JWT_SECRET,
// adapted from the teacher's gateway bearer-auth middleware without importing
// its reverse-proxy-specific gateway package.
func (d *daemon) requireAdminAuth(next http.Handler) http.Handler {
	secret := []byte(strings.TrimSpace(os.Getenv(adminJWTSignEnv)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(secret) == 0 {
			http.Error(w, "admin auth not configured", http.StatusServiceUnavailable)
			return
		}
		auth := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (d *daemon) handleGetEpoch(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	ep, err := d.engine.CurrentEpoch()
	d.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]uint64{"epoch": ep})
}

func (d *daemon) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "addr"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.mu.Lock()
	v, ok, err := d.engine.GetValidator(addr)
	d.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "unknown validator", http.StatusNotFound)
		return
	}
	writeJSON(w, v)
}

func (d *daemon) handleGetSet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	d.mu.Lock()
	ep, epErr := d.engine.CurrentEpoch()
	if epErr != nil {
		d.mu.Unlock()
		http.Error(w, epErr.Error(), http.StatusInternalServerError)
		return
	}
	var addrs []string
	var err error
	switch name {
	case "consensus":
		addrs, err = addressStrings(d.engine.ConsensusSet(ep))
	case "below_capacity":
		addrs, err = addressStrings(d.engine.BelowCapacitySet(ep))
	case "below_threshold":
		addrs, err = addressStrings(d.engine.BelowThresholdSet(ep))
	default:
		err = fmt.Errorf("unknown set %q", name)
	}
	d.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"epoch": ep, "set": name, "validators": addrs})
}

func (d *daemon) handlePostEvidence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Validator        string `json:"validator"`
		InfractionEpoch  uint64 `json:"infractionEpoch"`
		Type             string `json:"type"`
		VotingPower      string `json:"votingPower"`
		TotalVotingPower string `json:"totalVotingPower"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	addr, err := crypto.DecodeAddress(req.Validator)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var infType pos.InfractionType
	switch req.Type {
	case "double_sign":
		infType = pos.InfractionDoubleSign
	case "liveness":
		infType = pos.InfractionLiveness
	default:
		http.Error(w, "unknown infraction type", http.StatusBadRequest)
		return
	}
	vp, err := pos.AmountFromString(req.VotingPower)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	total, err := pos.AmountFromString(req.TotalVotingPower)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	current, err := d.engine.CurrentEpoch()
	if err == nil {
		err = d.engine.Ingest(pos.SlashEvidence{
			Validator: addr, InfractionEpoch: req.InfractionEpoch, Type: infType,
			ReportedEpoch: current, VotingPower: vp, TotalVotingPower: total,
		}, current)
	}
	d.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (d *daemon) handlePostAdvance(w http.ResponseWriter, _ *http.Request) {
	d.mu.Lock()
	newEpoch, err := d.engine.AdvanceEpoch()
	d.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]uint64{"epoch": newEpoch})
}

func (d *daemon) handlePostParams(w http.ResponseWriter, r *http.Request) {
	var staking config.Staking
	if err := json.NewDecoder(r.Body).Decode(&staking); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := config.ValidateStaking(staking); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	params, err := pos.ParamsFromConfig(staking)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	err = d.engine.QueueParams(params)
	if err == nil {
		err = d.paramStore.SetStaking(staking)
	}
	d.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func addressStrings(addrs []crypto.Address, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
