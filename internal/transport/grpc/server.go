package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"ioclens/internal/history"
	"ioclens/internal/indicator"
	"ioclens/internal/metrics"
)

type Options struct {
	MaxTextBytes  int
	MaxURLLen     int
	DecodeRounds  int
	DefangDefault bool
}

type Server struct {
	opts    Options
	store   *history.Store
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func NewServer(opts Options, store *history.Store, m *metrics.Metrics, log *zap.Logger) *Server {
	if opts.DecodeRounds <= 0 {
		opts.DecodeRounds = indicator.DefaultDecodeRounds
	}
	return &Server{
		opts:    opts,
		store:   store,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (s *Server) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResponse, error) {
	if s.opts.MaxTextBytes > 0 && len(req.Text) > s.opts.MaxTextBytes {
		return nil, status.Errorf(codes.InvalidArgument, "text is too large: %d bytes, limit %d", len(req.Text), s.opts.MaxTextBytes)
	}

	set := indicator.Extract(req.Text)
	if h := s.session(ctx); h != nil {
		h.SetExtraction(set, s.now())
	}
	s.metrics.ObserveExtraction(set)

	defang := s.defang(req.Defang)
	shown := set
	if defang {
		shown = set.Defanged()
	}

	return &ExtractResponse{
		URLs:       shown.URLs,
		Domains:    shown.Domains,
		IPs:        shown.IPs,
		Hashes:     shown.Hashes,
		Total:      set.Total(),
		Vibes:      indicator.Vibes(shown),
		Defanged:   defang,
		DefaultTab: string(set.DefaultKind()),
	}, nil
}

func (s *Server) Analyze(ctx context.Context, req *AnalyzeRequest) (*AnalyzeResponse, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		s.metrics.ObserveAnalysis(metrics.ResultEmpty, 0)
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}
	if s.opts.MaxURLLen > 0 && len(rawURL) > s.opts.MaxURLLen {
		s.metrics.ObserveAnalysis(metrics.ResultInvalid, 0)
		return nil, status.Error(codes.InvalidArgument, "url is too long")
	}

	a, err := indicator.DecomposeRounds(rawURL, s.opts.DecodeRounds)
	if errors.Is(err, indicator.ErrEmptyInput) {
		s.metrics.ObserveAnalysis(metrics.ResultEmpty, 0)
		return nil, status.Error(codes.InvalidArgument, "url is required")
	}
	if err != nil {
		s.metrics.ObserveAnalysis(metrics.ResultInvalid, 0)
		return nil, status.Errorf(codes.InvalidArgument, "invalid url: %v", err)
	}

	now := s.now()
	if h := s.session(ctx); h != nil {
		h.SetAnalysis(*a, now)
	}
	s.metrics.ObserveAnalysis(metrics.ResultOK, a.Flags.Count())

	return &AnalyzeResponse{
		Report:            indicator.NewReport(a, s.defang(req.Defang), now),
		FlagCount:         a.Flags.Count(),
		HostUnicode:       a.HostUnicode,
		RegistrableDomain: a.RegistrableDomain,
		Links:             indicator.InvestigateLinks(indicator.KindURL, a.Normalized),
	}, nil
}

func (s *Server) Links(ctx context.Context, req *LinksRequest) (*LinksResponse, error) {
	kind := indicator.Kind(strings.ToLower(strings.TrimSpace(req.Kind)))
	if _, ok := indicator.PatternFor(kind); !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown kind %q", req.Kind)
	}
	value := strings.TrimSpace(req.Value)
	if value == "" {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}
	return &LinksResponse{Links: indicator.InvestigateLinks(kind, value)}, nil
}

// session returns the history of the calling session, or nil when the call
// carries none.
func (s *Server) session(ctx context.Context) *history.Holder {
	id := SessionFromContext(ctx)
	if id == "" {
		return nil
	}
	return s.store.Session(id)
}

func (s *Server) defang(v *bool) bool {
	if v == nil {
		return s.opts.DefangDefault
	}
	return *v
}

// unaryInterceptor logs each call and records its latency.
func (s *Server) unaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	method := info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]
	s.metrics.ObserveDuration(method, start)

	code := status.Code(err)
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("code", code.String()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil && code != codes.InvalidArgument {
		s.log.Error("call failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug("call", fields...)
	}
	return resp, err
}

// NewGRPCServer returns a grpc.Server with the Analyzer service and
// reflection registered.
func NewGRPCServer(srv *Server) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(srv.unaryInterceptor))
	RegisterAnalyzerServer(s, srv)
	reflection.Register(s)
	return s
}

// RunGRPCServer starts a gRPC server on the given address and
// shuts it down gracefully when the context is canceled.
func RunGRPCServer(ctx context.Context, addr string, srv *Server) error {
	if addr == "" {
		addr = ":9090"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s := NewGRPCServer(srv)

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	srv.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.Serve(lis)
}
