package app

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ioclens/internal/config"
	"ioclens/internal/history"
	"ioclens/internal/metrics"
	"ioclens/internal/transport/grpc"
	httpgw "ioclens/internal/transport/http"
)

func Run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	store := history.NewStore(cfg.HistorySessions)
	m := metrics.New()

	srv := grpc.NewServer(grpc.Options{
		MaxTextBytes:  cfg.MaxTextBytes,
		MaxURLLen:     cfg.MaxURLLen,
		DecodeRounds:  cfg.DecodeRounds,
		DefangDefault: cfg.DefangDefault,
	}, store, m, log.Named("grpc"))

	gwOpts := httpgw.Options{
		MaxBodyBytes:   httpgw.MaxBodyFor(cfg.MaxTextBytes),
		DefangDefault:  cfg.DefangDefault,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return grpc.RunGRPCServer(ctx, cfg.GRPCAddr, srv)
	})

	g.Go(func() error {
		return httpgw.RunHTTPGatewayServer(ctx, cfg.HTTPAddr, cfg.GRPCAddr, store, m, log.Named("http"), gwOpts)
	})

	if err := g.Wait(); err != nil {
		log.Error("app: servers stopped with error", zap.Error(err))
		return err
	}

	log.Info("app: servers stopped gracefully")
	return nil
}
