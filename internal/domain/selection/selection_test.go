package selection_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/jury/internal/domain/model"
	"github.com/okian/jury/internal/domain/selection"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeSource filters a fixed pool the way a store would.
type fakeSource struct {
	projects []model.ProjectWithInstances
	busy     []string
	err      error
	since    time.Time
}

func (f *fakeSource) CandidateProjects(_ context.Context, excludeIDs, prizeIDs []string) ([]model.ProjectWithInstances, error) {
	if f.err != nil {
		return nil, f.err
	}
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	prizes := make(map[string]bool, len(prizeIDs))
	for _, id := range prizeIDs {
		prizes[id] = true
	}
	var out []model.ProjectWithInstances
	for _, p := range f.projects {
		if excluded[p.ID] || !p.Located() {
			continue
		}
		c := model.ProjectWithInstances{Project: p.Project}
		for _, ji := range p.Instances {
			if prizes[ji.PrizeID] {
				c.Instances = append(c.Instances, ji)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeSource) BusyProjectIDs(_ context.Context, since time.Time, _ string) ([]string, error) {
	f.since = since
	return f.busy, nil
}

func table(n int) *int { return &n }

func project(id string, instances ...model.JudgingInstance) model.ProjectWithInstances {
	for i := range instances {
		instances[i].ProjectID = id
		if instances[i].ID == "" {
			instances[i].ID = "ji-" + id + "-" + instances[i].PrizeID
		}
	}
	return model.ProjectWithInstances{
		Project:   model.Project{ID: id, Name: id, TableNumber: table(1)},
		Instances: instances,
	}
}

func instance(prizeID string, mu, sigma2 float64, visited int) model.JudgingInstance {
	return model.JudgingInstance{PrizeID: prizeID, Mu: mu, Sigma2: sigma2, TimesVisited: visited}
}

func session(assignments ...model.AssignmentDetail) model.JudgeSession {
	return model.JudgeSession{
		Judge:       model.Judge{ID: "judge-1", Alpha: 10, Beta: 1},
		Assignments: assignments,
	}
}

func assignment(prizeID string, leader *model.ProjectWithInstances) model.AssignmentDetail {
	a := model.AssignmentDetail{
		JudgePrizeAssignment: model.JudgePrizeAssignment{ID: "a-" + prizeID, JudgeID: "judge-1", PrizeID: prizeID},
		Prize:                model.Prize{ID: prizeID},
		Leader:               leader,
	}
	if leader != nil {
		id := leader.ID
		a.LeadingProjectID = &id
	}
	return a
}

func TestPolicy_Next(t *testing.T) {
	ctx := context.Background()

	Convey("Given a selection policy", t, func() {
		exploit := selection.New(selection.WithEpsilon(0), selection.WithSeed(7))

		Convey("When the judge has no prize assignments", func() {
			src := &fakeSource{projects: []model.ProjectWithInstances{
				project("p1", instance("prize-1", 0, 1, 0)),
			}}
			d, err := exploit.Next(ctx, session(), src)

			Convey("Then nothing is returned", func() {
				So(err, ShouldBeNil)
				So(d.Project, ShouldBeNil)
				So(d.Strategy, ShouldEqual, selection.StrategyNone)
			})
		})

		Convey("When the judge has already seen every project", func() {
			src := &fakeSource{projects: []model.ProjectWithInstances{
				project("p1", instance("prize-1", 0, 1, 0)),
				project("p2", instance("prize-1", 0, 1, 0)),
			}}
			s := session(assignment("prize-1", nil))
			s.IgnoredIDs = []string{"p1", "p2"}
			d, err := exploit.Next(ctx, s, src)

			Convey("Then the pool is exhausted", func() {
				So(err, ShouldBeNil)
				So(d.Project, ShouldBeNil)
			})
		})

		Convey("When candidates are not entered for any of the judge's prizes", func() {
			src := &fakeSource{projects: []model.ProjectWithInstances{
				project("p1", instance("prize-2", 0, 1, 0)),
			}}
			d, err := exploit.Next(ctx, session(assignment("prize-1", nil)), src)

			Convey("Then they are not eligible", func() {
				So(err, ShouldBeNil)
				So(d.Project, ShouldBeNil)
			})
		})

		Convey("When a project has no table", func() {
			unlocated := project("p1", instance("prize-1", 0, 1, 0))
			unlocated.TableNumber = nil
			src := &fakeSource{projects: []model.ProjectWithInstances{unlocated}}
			d, err := exploit.Next(ctx, session(assignment("prize-1", nil)), src)

			Convey("Then it is never served", func() {
				So(err, ShouldBeNil)
				So(d.Project, ShouldBeNil)
			})
		})

		Convey("When some projects were visited less than the others", func() {
			leader := project("leader", instance("prize-1", 0, 0.5, 5))
			src := &fakeSource{projects: []model.ProjectWithInstances{
				project("fresh-1", instance("prize-1", 0, 0.1, 0)),
				project("fresh-2", instance("prize-1", 0, 0.1, 0)),
				project("seen", instance("prize-1", 0, 1, 5)),
			}}
			s := session(assignment("prize-1", &leader))

			Convey("Then exploitation never picks the well-covered project", func() {
				for seed := int64(0); seed < 50; seed++ {
					p := selection.New(selection.WithEpsilon(0), selection.WithSeed(seed))
					d, err := p.Next(ctx, s, src)
					So(err, ShouldBeNil)
					So(d.Strategy, ShouldEqual, selection.StrategyExploit)
					So(d.Project.ID, ShouldNotEqual, "seen")
					So(d.PoolSize, ShouldEqual, 2)
				}
			})
		})

		Convey("When every project is equally covered", func() {
			leader := project("leader", instance("prize-1", 0, 0.5, 5))
			src := &fakeSource{projects: []model.ProjectWithInstances{
				project("settled", instance("prize-1", 0, 0.05, 5)),
				project("uncertain", instance("prize-1", 0, 1, 5)),
				project("middling", instance("prize-1", 0, 0.2, 5)),
			}}
			s := session(assignment("prize-1", &leader))

			Convey("Then the most informative comparison wins", func() {
				for seed := int64(0); seed < 20; seed++ {
					p := selection.New(selection.WithEpsilon(0), selection.WithSeed(seed))
					d, err := p.Next(ctx, s, src)
					So(err, ShouldBeNil)
					So(d.Project.ID, ShouldEqual, "uncertain")
					So(d.Gain, ShouldBeGreaterThan, 0)
				}
			})
		})

		Convey("When the judge has no leader yet", func() {
			src := &fakeSource{projects: []model.ProjectWithInstances{
				project("p1", instance("prize-1", 0, 1, 5)),
				project("p2", instance("prize-1", 0, 1, 5)),
			}}
			d, err := exploit.Next(ctx, session(assignment("prize-1", nil)), src)

			Convey("Then a project is still chosen with zero gain", func() {
				So(err, ShouldBeNil)
				So(d.Project, ShouldNotBeNil)
				So(d.Gain, ShouldEqual, 0)
			})
		})

		Convey("When another live judge holds a project", func() {
			src := &fakeSource{
				projects: []model.ProjectWithInstances{
					project("held", instance("prize-1", 0, 1, 0)),
					project("free", instance("prize-1", 0, 1, 0)),
				},
				busy: []string{"held"},
			}
			now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
			p := selection.New(
				selection.WithEpsilon(1),
				selection.WithBusyTimeout(5*time.Minute),
				selection.WithClock(func() time.Time { return now }),
			)

			Convey("Then the held project is avoided", func() {
				for i := 0; i < 20; i++ {
					d, err := p.Next(ctx, session(assignment("prize-1", nil)), src)
					So(err, ShouldBeNil)
					So(d.Project.ID, ShouldEqual, "free")
					So(d.Strategy, ShouldEqual, selection.StrategyExplore)
				}
				So(src.since, ShouldEqual, now.Add(-5*time.Minute))
			})

			Convey("And when every candidate is held", func() {
				src.busy = []string{"held", "free"}
				d, err := p.Next(ctx, session(assignment("prize-1", nil)), src)

				Convey("Then the policy falls back to the whole pool", func() {
					So(err, ShouldBeNil)
					So(d.Project, ShouldNotBeNil)
					So(d.PoolSize, ShouldEqual, 2)
				})
			})
		})

		Convey("When the source fails", func() {
			boom := errors.New("boom")
			_, err := exploit.Next(ctx, session(assignment("prize-1", nil)), &fakeSource{err: boom})

			Convey("Then the error is wrapped", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
			})
		})

		Convey("When exploring", func() {
			var projects []model.ProjectWithInstances
			for i := 0; i < 10; i++ {
				projects = append(projects, project(fmt.Sprintf("p%d", i), instance("prize-1", 0, 1, 0)))
			}
			src := &fakeSource{projects: projects}
			p := selection.New(selection.WithEpsilon(1), selection.WithSeed(3))

			Convey("Then picks are spread over the pool", func() {
				seen := map[string]bool{}
				for i := 0; i < 50; i++ {
					d, err := p.Next(ctx, session(assignment("prize-1", nil)), src)
					So(err, ShouldBeNil)
					seen[d.Project.ID] = true
				}
				So(len(seen), ShouldBeGreaterThan, 1)
			})
		})
	})
}
