package simulation

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/jury/internal/adapters/repository"
	service "github.com/okian/jury/internal/app"
	"github.com/okian/jury/internal/domain/selection"
	"github.com/okian/jury/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Judges = 5
	cfg.Prizes = 2
	cfg.Projects = 12
	cfg.SubmitProbability = 1
	cfg.JudgeAccuracy = 1
	cfg.NoisyJudgeFraction = 0
	cfg.Workers = 4
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	Convey("Given the default config", t, func() {
		So(DefaultConfig().Validate(), ShouldBeNil)

		Convey("Then out of range values are rejected", func() {
			cfg := DefaultConfig()
			cfg.SubmitProbability = 0
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)

			cfg = DefaultConfig()
			cfg.Projects = 1
			So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestSimulation(t *testing.T) {
	Convey("Given a prepared in-memory event", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore(ctx)
		cfg := smallConfig()
		w, err := Prepare(ctx, store, cfg)
		So(err, ShouldBeNil)
		svc := service.New(store, service.WithPolicy(selection.New(selection.WithSeed(cfg.Seed))))

		Convey("Then every entity is created", func() {
			So(w.Prizes, ShouldHaveLength, 2)
			So(w.JudgeIDs, ShouldHaveLength, 5)
			So(w.Projects, ShouldHaveLength, 12)
			for _, prize := range w.Prizes {
				So(w.Quality[prize.ID], ShouldHaveLength, 12)
			}
			judges, err := store.Judges(ctx)
			So(err, ShouldBeNil)
			So(judges, ShouldHaveLength, 5)
		})

		Convey("When preparing again", func() {
			_, err := Prepare(ctx, store, cfg)
			So(err, ShouldBeNil)

			Convey("Then the previous event is cleared", func() {
				projects, err := store.Projects(ctx)
				So(err, ShouldBeNil)
				So(projects, ShouldHaveLength, 12)
			})
		})

		Convey("When every judge walks to exhaustion", func() {
			stats, err := Run(ctx, svc, w, cfg)
			So(err, ShouldBeNil)

			Convey("Then every judge visits every project", func() {
				So(stats.Exhausted, ShouldEqual, int64(5))
				So(stats.Visits, ShouldEqual, int64(5*12))
				So(stats.Votes, ShouldBeGreaterThan, 0)
				So(stats.Agreements, ShouldEqual, stats.Votes)

				cmps, err := store.Comparisons(ctx)
				So(err, ShouldBeNil)
				So(int64(len(cmps)), ShouldEqual, stats.Votes)
			})

			Convey("And accurate judges produce rankings that track quality", func() {
				prizes, err := Evaluate(ctx, svc, w)
				So(err, ShouldBeNil)
				So(prizes, ShouldHaveLength, 2)
				for _, p := range prizes {
					So(p.Entries, ShouldEqual, 12)
					So(p.KendallTau, ShouldBeGreaterThan, 0)
				}

				report := NewReport(cfg, stats, prizes)
				So(report.MeanKendallTau, ShouldBeGreaterThan, 0)

				var buf bytes.Buffer
				So(report.WriteYAML(&buf), ShouldBeNil)
				var decoded Report
				So(yaml.Unmarshal(buf.Bytes(), &decoded), ShouldBeNil)
				So(decoded.Prizes, ShouldHaveLength, 2)
				So(decoded.Config.Judges, ShouldEqual, 5)
			})
		})

		Convey("When judges stop after a few votes", func() {
			cfg.MaxVotesPerJudge = 3
			stats, err := Run(ctx, svc, w, cfg)
			So(err, ShouldBeNil)

			Convey("Then no judge runs out of projects", func() {
				So(stats.Exhausted, ShouldEqual, int64(0))
				So(stats.Votes, ShouldBeLessThanOrEqualTo, int64(5*(3+cfg.Prizes-1)))
			})
		})
	})

	Convey("Given a world without judges", t, func() {
		_, err := Run(context.Background(), nil, &World{}, smallConfig())

		Convey("Then the run fails", func() {
			So(errors.Is(err, ErrNoJudges), ShouldBeTrue)
		})
	})
}

func TestBest(t *testing.T) {
	Convey("Given hidden qualities", t, func() {
		Convey("Then the highest one wins", func() {
			So(best(map[string]float64{"a": 0.1, "b": 2, "c": -1}), ShouldEqual, "b")
		})
		Convey("And ties go to the smallest id", func() {
			So(best(map[string]float64{"b": 1, "a": 1}), ShouldEqual, "a")
		})
		Convey("And an empty map has no best", func() {
			So(best(nil), ShouldEqual, "")
		})
	})
}
