package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Timezone, convey.ShouldEqual, "UTC")
			convey.So(cfg.RaidDayOffset, convey.ShouldEqual, 5*time.Hour)
			convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.WCLPageSize, convey.ShouldEqual, 100)
			convey.So(cfg.WCLReportTTL, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.WCLAttendanceTTL, convey.ShouldEqual, 12*time.Hour)
			convey.So(cfg.SyncWorkerCount, convey.ShouldEqual, runtime.NumCPU())
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		cfg := config.New()

		convey.Convey("When the timezone is unknown", func() {
			cfg.Timezone = "Mars/Olympus"

			convey.Convey("Then validation fails", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				_, err = cfg.Location()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the raid day offset is a full day", func() {
			cfg.RaidDayOffset = 24 * time.Hour

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a client id has no secret", func() {
			cfg.WCLClientID = "abc"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the driver is unsupported", func() {
			cfg.DBDriver = "mysql"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the timezone is a real zone", func() {
			cfg.Timezone = "Europe/Berlin"

			convey.Convey("Then the location loads", func() {
				loc, err := cfg.Location()
				convey.So(err, convey.ShouldBeNil)
				convey.So(loc.String(), convey.ShouldEqual, "Europe/Berlin")
			})
		})
	})
}
