package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/config"
	"github.com/okian/rollcall/internal/wiring"
	"github.com/okian/rollcall/pkg/logger"
	"github.com/okian/rollcall/pkg/metrics"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given the main application", t, func() {
		convey.Convey("When configuration comes from the environment", func() {
			t.Setenv("ROLLCALL_ADDR", ":8081")
			t.Setenv("ROLLCALL_SYNC_QUEUE_SIZE", "128")
			t.Setenv("ROLLCALL_SYNC_WORKER_COUNT", "4")
			t.Setenv("ROLLCALL_DB_DSN", ":memory:")

			convey.Convey("Then it is loaded over the defaults", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
				convey.So(cfg.SyncQueueSize, convey.ShouldEqual, 128)
				convey.So(cfg.SyncWorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When runtime collectors are registered twice", func() {
			convey.Convey("Then the second call is a no-op", func() {
				convey.So(metrics.RegisterRuntimeCollectors(), convey.ShouldBeNil)
				convey.So(metrics.RegisterRuntimeCollectors(), convey.ShouldBeNil)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		t.Fatal(err)
	}

	convey.Convey("Given components built from an in-memory configuration", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := config.New()
		cfg.DBDSN = ":memory:"
		cfg.CountingRankIDs = []int{1}
		cfg.CountingTagIDs = []int{10}
		cfg.SyncWorkerCount = 1

		comps, err := wiring.Build(ctx, cfg, logger.Get())
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = comps.Close() }()

		svc := comps.Service
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		mux := newMux(ctx, svc)

		get := func(path string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			return rec
		}

		convey.Convey("Then the attendance API is served", func() {
			rec := get("/attendance")
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "[]")
		})

		convey.Convey("Then the service reports ready", func() {
			convey.So(get("/readyz").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then the docs are served", func() {
			convey.So(get("/api-docs").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(get("/openapi.yaml").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then metrics are exposed", func() {
			updateServiceMetrics(ctx, svc)
			rec := get("/healthz")
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Body.String(), convey.ShouldContainSubstring, "rollcall_attendance_")
		})

		convey.Convey("Then sync requests are refused without a guild", func() {
			req := httptest.NewRequest(http.MethodPost, "/sync", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			convey.So(rec.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
		})

		convey.Convey("Then the metrics updater stops with its context", func() {
			short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
			defer stop()
			convey.So(func() { startServiceMetricsUpdater(short, svc) }, convey.ShouldNotPanic)
		})
	})
}
