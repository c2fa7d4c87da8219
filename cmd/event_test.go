package cmd

import (
	"bytes"
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/core/events"
)

var _ = Describe("audit subscribers", func() {
	var (
		buf *bytes.Buffer
		bus *events.EventBus
		ctx context.Context
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		lg := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
		bus = events.NewEventBus(lg)
		registerAuditSubscribers(bus, lg)
		ctx = internal.ContextWithTraceID(context.Background(), "trace-123")
	})

	It("logs logins with the trace id", func() {
		Expect(bus.PublishSync(ctx, events.NewUserLoggedInEvent(7, "10.0.0.1"))).To(Succeed())

		Expect(buf.String()).To(ContainSubstring(`"msg":"user logged in"`))
		Expect(buf.String()).To(ContainSubstring(`"component":"audit"`))
		Expect(buf.String()).To(ContainSubstring(`"trace_id":"trace-123"`))
		Expect(buf.String()).To(ContainSubstring(`"source_address":"10.0.0.1"`))
	})

	It("logs denials as warnings", func() {
		Expect(bus.PublishSync(ctx, events.NewAccessDeniedEvent(7, "phoenix", "home", "denied"))).To(Succeed())

		Expect(buf.String()).To(ContainSubstring(`"level":"WARN"`))
		Expect(buf.String()).To(ContainSubstring(`"namespace":"phoenix"`))
		Expect(buf.String()).To(ContainSubstring(`"reason":"denied"`))
	})

	It("logs replaced grants after async delivery", func() {
		Expect(bus.Publish(ctx, events.NewGrantsReplacedEvent(7, 1, []int64{10, 20}))).To(Succeed())
		bus.Wait()

		Expect(buf.String()).To(ContainSubstring(`"msg":"module grants replaced"`))
		Expect(buf.String()).To(ContainSubstring(`"module_ids":[10,20]`))
		Expect(buf.String()).To(ContainSubstring(`"trace_id":"trace-123"`))
	})
})
