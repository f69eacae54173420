package grpc

import (
	"context"

	"google.golang.org/grpc"

	"ioclens/internal/indicator"
)

const (
	ServiceName = "ioclens.v1.Analyzer"

	ExtractMethod = "/" + ServiceName + "/Extract"
	AnalyzeMethod = "/" + ServiceName + "/Analyze"
	LinksMethod   = "/" + ServiceName + "/Links"
)

type ExtractRequest struct {
	Text string `json:"text"`
	// Defang overrides the server default when set.
	Defang *bool `json:"defang,omitempty"`
}

type ExtractResponse struct {
	URLs       []string          `json:"urls"`
	Domains    []string          `json:"domains"`
	IPs        []string          `json:"ips"`
	Hashes     []string          `json:"hashes"`
	Total      int               `json:"total"`
	Vibes      map[string]string `json:"vibes"`
	Defanged   bool              `json:"defanged"`
	DefaultTab string            `json:"defaultTab"`
}

type AnalyzeRequest struct {
	URL    string `json:"url"`
	Defang *bool  `json:"defang,omitempty"`
}

type AnalyzeResponse struct {
	Report            indicator.Report `json:"report"`
	FlagCount         int              `json:"flagCount"`
	HostUnicode       string           `json:"hostUnicode,omitempty"`
	RegistrableDomain string           `json:"registrableDomain,omitempty"`
	Links             indicator.Links  `json:"links"`
}

type LinksRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type LinksResponse struct {
	indicator.Links
}

type AnalyzerServer interface {
	Extract(context.Context, *ExtractRequest) (*ExtractResponse, error)
	Analyze(context.Context, *AnalyzeRequest) (*AnalyzeResponse, error)
	Links(context.Context, *LinksRequest) (*LinksResponse, error)
}

func RegisterAnalyzerServer(s grpc.ServiceRegistrar, srv AnalyzerServer) {
	s.RegisterService(&analyzerServiceDesc, srv)
}

var analyzerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyzerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Extract", Handler: extractHandler},
		{MethodName: "Analyze", Handler: analyzeHandler},
		{MethodName: "Links", Handler: linksHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ioclens/v1/analyzer",
}

func extractHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ExtractRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).Extract(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ExtractMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzerServer).Extract(ctx, req.(*ExtractRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func analyzeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(AnalyzeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzerServer).Analyze(ctx, req.(*AnalyzeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func linksHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(LinksRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzerServer).Links(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: LinksMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzerServer).Links(ctx, req.(*LinksRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// AnalyzerClient calls the Analyzer service using the JSON codec.
type AnalyzerClient struct {
	cc grpc.ClientConnInterface
}

func NewAnalyzerClient(cc grpc.ClientConnInterface) *AnalyzerClient {
	return &AnalyzerClient{cc: cc}
}

func (c *AnalyzerClient) Extract(ctx context.Context, in *ExtractRequest, opts ...grpc.CallOption) (*ExtractResponse, error) {
	out := new(ExtractResponse)
	if err := c.cc.Invoke(ctx, ExtractMethod, in, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AnalyzerClient) Analyze(ctx context.Context, in *AnalyzeRequest, opts ...grpc.CallOption) (*AnalyzeResponse, error) {
	out := new(AnalyzeResponse)
	if err := c.cc.Invoke(ctx, AnalyzeMethod, in, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AnalyzerClient) Links(ctx context.Context, in *LinksRequest, opts ...grpc.CallOption) (*LinksResponse, error) {
	out := new(LinksResponse)
	if err := c.cc.Invoke(ctx, LinksMethod, in, out, c.callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AnalyzerClient) callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
