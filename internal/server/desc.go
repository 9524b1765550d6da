package server

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "renamer.v1.Renamer"

// RenamerServer is the server API of the renamer service.
type RenamerServer interface {
	CreateJob(context.Context, *CreateJobRequest) (*CreateJobResponse, error)
	ListFiles(context.Context, *ListFilesRequest) (*ListFilesResponse, error)
	Process(context.Context, *ProcessRequest) (*ProcessResponse, error)
	PreviewManualRename(context.Context, *PreviewManualRenameRequest) (*RenamePreviewResponse, error)
	PreviewLabelRename(context.Context, *PreviewLabelRenameRequest) (*RenamePreviewResponse, error)
	ApplyRename(context.Context, *ApplyRenameRequest) (*ApplyRenameResponse, error)
	Undo(context.Context, *UndoRequest) (*UndoResponse, error)
	SetOverride(context.Context, *SetOverrideRequest) (*SetOverrideResponse, error)
	PreviewReport(context.Context, *PreviewReportRequest) (*PreviewReportResponse, error)
	WriteReport(context.Context, *WriteReportRequest) (*WriteReportResponse, error)
}

// ServiceDesc is the grpc.ServiceDesc for the renamer service. Messages travel
// with the JSON codec registered by this package.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RenamerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateJob", RenamerServer.CreateJob),
		unary("ListFiles", RenamerServer.ListFiles),
		unary("Process", RenamerServer.Process),
		unary("PreviewManualRename", RenamerServer.PreviewManualRename),
		unary("PreviewLabelRename", RenamerServer.PreviewLabelRename),
		unary("ApplyRename", RenamerServer.ApplyRename),
		unary("Undo", RenamerServer.Undo),
		unary("SetOverride", RenamerServer.SetOverride),
		unary("PreviewReport", RenamerServer.PreviewReport),
		unary("WriteReport", RenamerServer.WriteReport),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "renamer/v1/renamer.proto",
}

// RegisterRenamerServer registers the server implementation with a gRPC server.
func RegisterRenamerServer(s grpc.ServiceRegistrar, srv RenamerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary[Req, Resp any](method string, call func(RenamerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RenamerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(RenamerServer), ctx, req.(*Req))
			})
		},
	}
}

// ---- client implementation ----

// Client calls the renamer service with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateJob(ctx context.Context, in *CreateJobRequest, opts ...grpc.CallOption) (*CreateJobResponse, error) {
	return invoke[CreateJobResponse](ctx, c.cc, "CreateJob", in, opts)
}

func (c *Client) ListFiles(ctx context.Context, in *ListFilesRequest, opts ...grpc.CallOption) (*ListFilesResponse, error) {
	return invoke[ListFilesResponse](ctx, c.cc, "ListFiles", in, opts)
}

func (c *Client) Process(ctx context.Context, in *ProcessRequest, opts ...grpc.CallOption) (*ProcessResponse, error) {
	return invoke[ProcessResponse](ctx, c.cc, "Process", in, opts)
}

func (c *Client) PreviewManualRename(ctx context.Context, in *PreviewManualRenameRequest, opts ...grpc.CallOption) (*RenamePreviewResponse, error) {
	return invoke[RenamePreviewResponse](ctx, c.cc, "PreviewManualRename", in, opts)
}

func (c *Client) PreviewLabelRename(ctx context.Context, in *PreviewLabelRenameRequest, opts ...grpc.CallOption) (*RenamePreviewResponse, error) {
	return invoke[RenamePreviewResponse](ctx, c.cc, "PreviewLabelRename", in, opts)
}

func (c *Client) ApplyRename(ctx context.Context, in *ApplyRenameRequest, opts ...grpc.CallOption) (*ApplyRenameResponse, error) {
	return invoke[ApplyRenameResponse](ctx, c.cc, "ApplyRename", in, opts)
}

func (c *Client) Undo(ctx context.Context, in *UndoRequest, opts ...grpc.CallOption) (*UndoResponse, error) {
	return invoke[UndoResponse](ctx, c.cc, "Undo", in, opts)
}

func (c *Client) SetOverride(ctx context.Context, in *SetOverrideRequest, opts ...grpc.CallOption) (*SetOverrideResponse, error) {
	return invoke[SetOverrideResponse](ctx, c.cc, "SetOverride", in, opts)
}

func (c *Client) PreviewReport(ctx context.Context, in *PreviewReportRequest, opts ...grpc.CallOption) (*PreviewReportResponse, error) {
	return invoke[PreviewReportResponse](ctx, c.cc, "PreviewReport", in, opts)
}

func (c *Client) WriteReport(ctx context.Context, in *WriteReportRequest, opts ...grpc.CallOption) (*WriteReportResponse, error) {
	return invoke[WriteReportResponse](ctx, c.cc, "WriteReport", in, opts)
}
