package handler_test

import (
	"context"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-procurement-assistant/internal/handler"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/logger"
	"github.com/pesio-ai/be-procurement-assistant/internal/service"
)

var _ = Describe("GRPCHandler", func() {
	var (
		server *grpc.Server
		conn   *grpc.ClientConn
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		lis := bufconn.Listen(1 << 20)

		reports := service.NewReportService("", logger.Nop())
		server = grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryServerInterceptor(zerolog.Nop())))
		handler.RegisterReportServiceServer(server, handler.NewGRPCHandler(reports, zerolog.Nop()))
		go func() {
			defer GinkgoRecover()
			_ = server.Serve(lis)
		}()

		var err error
		conn, err = grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		conn.Close()
		server.Stop()
	})

	invoke := func(method string, in map[string]any) (*structpb.Struct, error) {
		req, err := structpb.NewStruct(in)
		Expect(err).NotTo(HaveOccurred())
		out := new(structpb.Struct)
		err = conn.Invoke(ctx, "/"+handler.ReportServiceName+"/"+method, req, out)
		return out, err
	}

	It("renders a document", func() {
		out, err := invoke("RenderDocument", map[string]any{
			"document_json": `{"items": [{"name": "Chair", "qty": 10}]}`,
			"title":         "Procurement Request",
			"kind":          "RFQ",
		})
		Expect(err).NotTo(HaveOccurred())

		blocks := out.AsMap()["blocks"].([]any)
		Expect(blocks).To(HaveLen(3))
		Expect(blocks[0].(map[string]any)["text"]).To(Equal("RFQ: Procurement Request"))
		table := blocks[2].(map[string]any)
		Expect(table["type"]).To(Equal("list_table"))
		Expect(table["rows"]).To(Equal([]any{[]any{"Chair", "10"}}))
	})

	It("renders text that is not JSON", func() {
		out, err := invoke("RenderDocument", map[string]any{"document_json": "plain words"})
		Expect(err).NotTo(HaveOccurred())

		blocks := out.AsMap()["blocks"].([]any)
		Expect(blocks[len(blocks)-1].(map[string]any)["text"]).To(Equal("plain words"))
	})

	It("requires a document", func() {
		_, err := invoke("RenderDocument", map[string]any{"title": "x"})
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
	})

	It("compares quotations in order", func() {
		out, err := invoke("CompareQuotations", map[string]any{
			"quotations_json": `{"B": {"items": [{"description": "Nut", "unit_price": 3}]}, "A": {"items": []}}`,
		})
		Expect(err).NotTo(HaveOccurred())

		m := out.AsMap()
		Expect(m["vendors"]).To(Equal([]any{"B", "A"}))
		Expect(m["rows"]).To(Equal([]any{
			map[string]any{"description": "Nut", "B": float64(3), "A": "N/A"},
		}))
	})

	It("rejects quotations that are not an object", func() {
		_, err := invoke("CompareQuotations", map[string]any{"quotations_json": `[1]`})
		Expect(status.Code(err)).To(Equal(codes.InvalidArgument))
	})
})
