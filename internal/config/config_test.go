package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/jury/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StorageDriver, convey.ShouldEqual, "memory")
			convey.So(cfg.Epsilon, convey.ShouldEqual, 0.25)
			convey.So(cfg.MinViews, convey.ShouldEqual, 2)
			convey.So(cfg.BusyTimeout(), convey.ShouldEqual, 10*time.Minute)
			convey.So(cfg.TopCacheTTL(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.MaxTopLimit, convey.ShouldEqual, 100)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When epsilon is outside [0, 1]", func() {
			cfg.Epsilon = 1.5

			convey.Convey("Then validation fails", func() {
				err := cfg.Validate()
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a SQL driver has no DSN", func() {
			cfg.StorageDriver = "postgres"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a SQL driver has a DSN", func() {
			cfg.StorageDriver = "sqlite"
			cfg.StorageDSN = "file:jury.db"

			convey.Convey("Then validation passes", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the driver is unknown", func() {
			cfg.StorageDriver = "mongo"

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the busy timeout is zero", func() {
			cfg.BusyTimeoutMS = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})
	})
}
