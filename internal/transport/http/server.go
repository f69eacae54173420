package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"ioclens/internal/history"
	"ioclens/internal/metrics"
	grpcTransport "ioclens/internal/transport/grpc"
)

type Options struct {
	MaxBodyBytes   int64
	DefangDefault  bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// MaxBodyFor returns a request body cap that admits any text of up to
// maxTextBytes, with every byte escaped as \u00XX in the worst case.
func MaxBodyFor(maxTextBytes int) int64 {
	return 6*int64(maxTextBytes) + 4<<10
}

type Gateway struct {
	mux      *runtime.ServeMux
	analyzer Analyzer
	store    *history.Store
	metrics  *metrics.Metrics
	log      *zap.Logger
	opts     Options
	limiter  *rate.Limiter

	ready func() bool
	now   func() time.Time

	body runtime.Marshaler
	errs runtime.Marshaler
}

func NewGateway(analyzer Analyzer, store *history.Store, m *metrics.Metrics, log *zap.Logger, opts Options) (*Gateway, error) {
	g := &Gateway{
		mux:      runtime.NewServeMux(),
		analyzer: analyzer,
		store:    store,
		metrics:  m,
		log:      log,
		opts:     opts,
		ready:    func() bool { return true },
		now:      time.Now,
		body:     &runtime.JSONBuiltin{},
		errs:     &runtime.JSONPb{},
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}

	routes := []struct {
		method, path string
		h            runtime.HandlerFunc
	}{
		{http.MethodPost, "/api/v1/extract", g.extract},
		{http.MethodPost, "/api/v1/analyze", g.analyze},
		{http.MethodGet, "/api/v1/links", g.links},
		{http.MethodGet, "/api/v1/export/iocs.json", g.exportJSON},
		{http.MethodGet, "/api/v1/export/iocs.csv", g.exportCSV},
		{http.MethodGet, "/api/v1/export/iocs.txt", g.exportText},
		{http.MethodGet, "/api/v1/export/url-analysis.json", g.exportAnalysis},
	}
	for _, rt := range routes {
		if err := g.mux.HandlePath(rt.method, rt.path, rt.h); err != nil {
			return nil, fmt.Errorf("route %s %s: %w", rt.method, rt.path, err)
		}
	}
	return g, nil
}

// Handler returns the full HTTP surface: the rate-limited API plus
// health, readiness and metrics endpoints.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", g.rateLimit(g.mux))

	// /healthz: basic liveness check
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// /readyz: the analyzer backend is reachable
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !g.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", g.metrics.Handler())
	return mux
}

func (g *Gateway) rateLimit(next http.Handler) http.Handler {
	if g.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.limiter.Allow() {
			g.metrics.ObserveRateLimited()
			g.fail(w, r, status.Error(codes.ResourceExhausted, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Gateway) extract(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req grpcTransport.ExtractRequest
	if err := g.decode(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	ctx := grpcTransport.WithSession(r.Context(), ensureSession(w, r))
	resp, err := g.analyzer.Extract(ctx, &req)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.write(w, resp)
}

func (g *Gateway) analyze(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req grpcTransport.AnalyzeRequest
	if err := g.decode(w, r, &req); err != nil {
		g.fail(w, r, err)
		return
	}
	ctx := grpcTransport.WithSession(r.Context(), ensureSession(w, r))
	resp, err := g.analyzer.Analyze(ctx, &req)
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.write(w, resp)
}

func (g *Gateway) links(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	resp, err := g.analyzer.Links(r.Context(), &grpcTransport.LinksRequest{
		Kind:  q.Get("kind"),
		Value: q.Get("value"),
	})
	if err != nil {
		g.fail(w, r, err)
		return
	}
	g.write(w, resp)
}

func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := r.Body
	if g.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, g.opts.MaxBodyBytes)
	}
	if err := g.body.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return status.Errorf(codes.InvalidArgument, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return status.Errorf(codes.InvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

// defangParam reads ?defang=, falling back to the configured default.
func (g *Gateway) defangParam(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("defang")
	if v == "" {
		return g.opts.DefangDefault, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, status.Errorf(codes.InvalidArgument, "invalid defang value %q", v)
	}
	return b, nil
}

func (g *Gateway) write(w http.ResponseWriter, v any) {
	buf, err := g.body.Marshal(v)
	if err != nil {
		g.log.Error("marshal response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", g.body.ContentType(v))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf)
}

// fail renders err through the gateway error handler, so gRPC codes map to
// HTTP statuses the same way for every route.
func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	if code := status.Code(err); code != codes.InvalidArgument && code != codes.NotFound && code != codes.ResourceExhausted {
		g.log.Warn("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	runtime.HTTPError(r.Context(), g.mux, g.errs, w, r, err)
}

func RunHTTPGatewayServer(ctx context.Context, httpAddr, grpcEndpoint string, store *history.Store, m *metrics.Metrics, log *zap.Logger, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := grpc.NewClient(grpcEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", grpcEndpoint, err)
	}
	defer conn.Close()
	conn.Connect()

	gw, err := NewGateway(NewClientAnalyzer(conn), store, m, log, opts)
	if err != nil {
		return err
	}
	gw.ready = func() bool {
		s := conn.GetState()
		return s != connectivity.TransientFailure && s != connectivity.Shutdown
	}

	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      gw.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown of the HTTP server when the parent context is canceled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("http gateway: graceful shutdown error", zap.Error(err))
		}
	}()

	log.Info("HTTP gateway listening", zap.String("addr", httpAddr), zap.String("grpc", grpcEndpoint))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
