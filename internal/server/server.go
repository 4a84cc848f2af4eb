package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"

	"github.com/ggonzalez94/bridgectl/internal/bridge"
	clierr "github.com/ggonzalez94/bridgectl/internal/errors"
	"github.com/ggonzalez94/bridgectl/internal/interpret"
	"github.com/ggonzalez94/bridgectl/internal/metrics"
	"github.com/ggonzalez94/bridgectl/internal/model"
	"github.com/ggonzalez94/bridgectl/internal/out"
	"github.com/ggonzalez94/bridgectl/internal/policy"
	"github.com/ggonzalez94/bridgectl/internal/registry"
	"github.com/ggonzalez94/bridgectl/internal/wallet"
)

const maxBodyBytes = 64 << 10

type Deps struct {
	Interpreter    *interpret.Interpreter
	Orchestrator   *bridge.Orchestrator
	Wallet         *wallet.Manager
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	EnableCommands []string
}

// Server exposes one process-wide orchestrator and wallet session over HTTP.
type Server struct {
	interp  *interpret.Interpreter
	orch    *bridge.Orchestrator
	wallet  *wallet.Manager
	metrics *metrics.Metrics
	log     zerolog.Logger
	allow   []string
	now     func() time.Time
}

func New(deps Deps) *Server {
	return &Server{
		interp:  deps.Interpreter,
		orch:    deps.Orchestrator,
		wallet:  deps.Wallet,
		metrics: deps.Metrics,
		log:     deps.Logger.With().Str("component", "server").Logger(),
		allow:   deps.EnableCommands,
		now:     time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/chains", s.guard("chains list", s.handleChains))
	r.Get("/chains/{chain}/tokens", s.guard("tokens list", s.handleTokens))
	r.Post("/interpret", s.guard("interpret", s.handleInterpret))
	r.Post("/estimate", s.guard("estimate", s.handleEstimate))

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", s.guard("wallet show", s.handleWallet))
		r.Post("/connect", s.guard("wallet connect", s.handleConnect))
		r.Post("/switch", s.guard("wallet switch", s.handleSwitch))
		r.Post("/disconnect", s.guard("wallet disconnect", s.handleDisconnect))
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", s.guard("run", s.handleSubmit))
		r.Get("/", s.guard("history", s.handleHistory))
		r.Get("/{id}", s.guard("status", s.handleStatus))
	})
	return r
}

// ListenAndServe serves until ctx ends, then drains connections and waits
// for in-flight transfers to record their final state.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info().Str("addr", addr).Msg("http service started")

	select {
	case err, ok := <-errCh:
		if ok {
			return clierr.Wrap(clierr.CodeUnavailable, "listen "+addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("http shutdown")
	}
	if s.orch != nil {
		if err := s.orch.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("in-flight transfers did not finish before shutdown")
		}
	}
	s.log.Info().Msg("http service stopped")
	return nil
}

func (s *Server) guard(command string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := policy.CheckCommandAllowed(s.allow, command); err != nil {
			s.fail(w, command, err, nil)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), commandKey{}, command)))
	}
}

type commandKey struct{}

func commandOf(r *http.Request) string {
	if v, ok := r.Context().Value(commandKey{}).(string); ok {
		return v
	}
	return r.URL.Path
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains := registry.ListChains()
	infos := make([]model.ChainInfo, 0, len(chains))
	for _, c := range chains {
		infos = append(infos, c.Info())
	}
	s.ok(w, r, http.StatusOK, infos)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	chain, err := registry.ParseChain(chi.URLParam(r, "chain"))
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	tokens, err := registry.TokensFor(chain.ID)
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	infos := make([]model.TokenInfo, 0, len(tokens))
	for _, t := range tokens {
		infos = append(infos, t.Info(chain.ID))
	}
	s.ok(w, r, http.StatusOK, infos)
}

type textRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleInterpret(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	result, err := s.interp.Interpret(r.Context(), req.Text)
	if err != nil {
		s.fail(w, commandOf(r), err, result)
		return
	}
	s.ok(w, r, http.StatusOK, result)
}

type estimateResponse struct {
	Instruction model.BridgeInstruction `json:"instruction"`
	Estimate    model.BridgeEstimate    `json:"estimate"`
	Steps       []string                `json:"steps"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	instr, err := s.instructionFromRequest(r)
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	s.ok(w, r, http.StatusOK, estimateResponse{
		Instruction: instr,
		Estimate:    interpret.Estimate(instr),
		Steps:       interpret.Steps(instr),
	})
}

type chainRequest struct {
	Chain string `json:"chain"`
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	session, ok := s.wallet.CurrentSession()
	if !ok {
		s.fail(w, commandOf(r), clierr.New(clierr.CodeSession, "no wallet connected"), nil)
		return
	}
	s.ok(w, r, http.StatusOK, session.Model())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req chainRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	session, err := s.wallet.Connect(r.Context(), req.Chain)
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	s.ok(w, r, http.StatusOK, session.Model())
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req chainRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	session, err := s.wallet.SwitchChain(r.Context(), req.Chain)
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	s.ok(w, r, http.StatusOK, session.Model())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.wallet.Disconnect()
	s.ok(w, r, http.StatusOK, map[string]bool{"connected": false})
}

type submitRequest struct {
	Text         string `json:"text"`
	SourceChain  string `json:"source_chain"`
	Token        string `json:"token"`
	Amount       string `json:"amount"`
	SourceTxHash string `json:"source_tx_hash"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	instr, err := s.instructionFromRequest(r)
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	// Transfers outlive the request; the orchestrator runs them on its own context.
	tx, err := s.orch.Submit(r.Context(), instr, func(status model.TxStatus, txID string) {
		s.log.Info().Str("tx_id", txID).Str("status", string(status)).Msg("bridge status")
	})
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	w.Header().Set("Location", "/transactions/"+tx.ID)
	s.ok(w, r, http.StatusAccepted, tx)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	txs := s.orch.ListTransactions()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var limit int
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 0 {
			s.fail(w, commandOf(r), clierr.New(clierr.CodeUsage, "limit must be a non-negative integer"), nil)
			return
		}
		if limit > 0 && len(txs) > limit {
			txs = txs[:limit]
		}
	}
	s.ok(w, r, http.StatusOK, txs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tx, err := s.orch.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, commandOf(r), err, nil)
		return
	}
	s.ok(w, r, http.StatusOK, tx)
}

// instructionFromRequest accepts either free text, which is interpreted, or
// explicit fields.
func (s *Server) instructionFromRequest(r *http.Request) (model.BridgeInstruction, error) {
	var req submitRequest
	if err := decodeBody(r, &req); err != nil {
		return model.BridgeInstruction{}, err
	}
	if strings.TrimSpace(req.Text) != "" {
		result, err := s.interp.Interpret(r.Context(), req.Text)
		if err != nil {
			return model.BridgeInstruction{}, err
		}
		instr := result.Instruction
		instr.SourceTxHash = req.SourceTxHash
		return instr, nil
	}
	return model.BridgeInstruction{
		SourceChain:      req.SourceChain,
		Token:            req.Token,
		Amount:           req.Amount,
		DestinationChain: string(registry.DestinationChain),
		SourceTxHash:     req.SourceTxHash,
	}, nil
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return clierr.New(clierr.CodeUsage, "request body is required")
		}
		return clierr.Wrap(clierr.CodeUsage, "decode request body", err)
	}
	return nil
}

func (s *Server) ok(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, out.Success(commandOf(r), data, nil, out.CacheBypass(), s.now()))
}

func (s *Server) fail(w http.ResponseWriter, command string, err error, data any) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("command", command).Msg("request failed")
	}
	writeJSON(w, status, out.Failure(command, err, data, s.now()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpStatus(err error) int {
	switch clierr.CodeOf(err) {
	case clierr.CodeUsage, clierr.CodeUnsupported:
		return http.StatusBadRequest
	case clierr.CodeAuth:
		return http.StatusUnauthorized
	case clierr.CodeBlocked, clierr.CodeRejected:
		return http.StatusForbidden
	case clierr.CodeNotFound:
		return http.StatusNotFound
	case clierr.CodeSession:
		return http.StatusConflict
	case clierr.CodeNeedInfo:
		return http.StatusUnprocessableEntity
	case clierr.CodeRateLimited:
		return http.StatusTooManyRequests
	case clierr.CodeTimeout:
		return http.StatusGatewayTimeout
	case clierr.CodeUnavailable, clierr.CodeNoProvider, clierr.CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
