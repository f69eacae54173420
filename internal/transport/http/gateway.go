package http

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	grpcTransport "ioclens/internal/transport/grpc"
)

// Analyzer is the service the gateway exposes over HTTP/JSON. Both the
// in-process *grpc.Server implementation and a remote client satisfy it.
type Analyzer = grpcTransport.AnalyzerServer

// clientAnalyzer forwards gateway calls over a gRPC connection.
type clientAnalyzer struct {
	c *grpcTransport.AnalyzerClient
}

func NewClientAnalyzer(cc grpc.ClientConnInterface) Analyzer {
	return clientAnalyzer{c: grpcTransport.NewAnalyzerClient(cc)}
}

func (a clientAnalyzer) Extract(ctx context.Context, req *grpcTransport.ExtractRequest) (*grpcTransport.ExtractResponse, error) {
	return a.c.Extract(ctx, req)
}

func (a clientAnalyzer) Analyze(ctx context.Context, req *grpcTransport.AnalyzeRequest) (*grpcTransport.AnalyzeResponse, error) {
	return a.c.Analyze(ctx, req)
}

func (a clientAnalyzer) Links(ctx context.Context, req *grpcTransport.LinksRequest) (*grpcTransport.LinksResponse, error) {
	return a.c.Links(ctx, req)
}

// localAnalyzer calls an in-process implementation, handing outgoing call
// metadata over as incoming the way a real connection would.
type localAnalyzer struct {
	srv Analyzer
}

func NewLocalAnalyzer(srv Analyzer) Analyzer {
	return localAnalyzer{srv: srv}
}

func (a localAnalyzer) Extract(ctx context.Context, req *grpcTransport.ExtractRequest) (*grpcTransport.ExtractResponse, error) {
	return a.srv.Extract(incoming(ctx), req)
}

func (a localAnalyzer) Analyze(ctx context.Context, req *grpcTransport.AnalyzeRequest) (*grpcTransport.AnalyzeResponse, error) {
	return a.srv.Analyze(incoming(ctx), req)
}

func (a localAnalyzer) Links(ctx context.Context, req *grpcTransport.LinksRequest) (*grpcTransport.LinksResponse, error) {
	return a.srv.Links(incoming(ctx), req)
}

func incoming(ctx context.Context) context.Context {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return ctx
	}
	return metadata.NewIncomingContext(ctx, md)
}
