package wire

import (
	"context"

	"google.golang.org/grpc"
)

// PrinterServer is implemented by the shared, stateless printer.
type PrinterServer interface {
	SendToPrinter(context.Context, *PrintRequest) (*PrintResponse, error)
}

// PrinterClient is the outbound stub every peer holds to the printer.
type PrinterClient interface {
	SendToPrinter(ctx context.Context, in *PrintRequest, opts ...grpc.CallOption) (*PrintResponse, error)
}

type printerClient struct {
	cc grpc.ClientConnInterface
}

// NewPrinterClient builds a PrinterClient over an established
// connection to the printer.
func NewPrinterClient(cc grpc.ClientConnInterface) PrinterClient {
	return &printerClient{cc: cc}
}

func (c *printerClient) SendToPrinter(ctx context.Context, in *PrintRequest, opts ...grpc.CallOption) (*PrintResponse, error) {
	opts = append(opts, grpc.CallContentSubtype(CodecName))
	out := new(PrintResponse)
	if err := c.cc.Invoke(ctx, "/peermutex.Printer/SendToPrinter", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func _Printer_SendToPrinter_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PrintRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PrinterServer).SendToPrinter(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/peermutex.Printer/SendToPrinter",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PrinterServer).SendToPrinter(ctx, req.(*PrintRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PrinterServiceDesc is the grpc.ServiceDesc the printer process
// registers its PrinterServer implementation under.
var PrinterServiceDesc = grpc.ServiceDesc{
	ServiceName: "peermutex.Printer",
	HandlerType: (*PrinterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendToPrinter", Handler: _Printer_SendToPrinter_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mutex.proto",
}

// RegisterPrinterServer registers srv as the handler for the Printer
// service on s.
func RegisterPrinterServer(s grpc.ServiceRegistrar, srv PrinterServer) {
	s.RegisterService(&PrinterServiceDesc, srv)
}
