package model_test

import (
	"testing"

	model "github.com/okian/jury/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func strPtr(s string) *string { return &s }

func TestNewSessionView(t *testing.T) {
	convey.Convey("Given a judge session", t, func() {
		prize := model.Prize{ID: "prize-1", Name: "Best Hack"}
		current := model.ProjectWithInstances{
			Project:   model.Project{ID: "project-b", Name: "B"},
			Instances: []model.JudgingInstance{{ID: "ji-b", ProjectID: "project-b", PrizeID: "prize-1", Sigma2: 1}},
		}

		convey.Convey("When no project is assigned", func() {
			view := model.NewSessionView(model.JudgeSession{})

			convey.Convey("Then there is nothing to show", func() {
				convey.So(view, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the only assignment has no leader", func() {
			session := model.JudgeSession{
				Judge: model.Judge{ID: "judge-1"},
				Assignments: []model.AssignmentDetail{{
					JudgePrizeAssignment: model.JudgePrizeAssignment{ID: "a-1", JudgeID: "judge-1", PrizeID: "prize-1"},
					Prize:                prize,
				}},
				Next: &current,
			}
			view := model.NewSessionView(session)

			convey.Convey("Then the project is a first encounter", func() {
				convey.So(view, convey.ShouldNotBeNil)
				convey.So(view.Mode, convey.ShouldEqual, model.ModeFirstEncounter)
				convey.So(view.Prizes, convey.ShouldHaveLength, 1)
				convey.So(view.Prizes[0].State, convey.ShouldEqual, model.StateNoLeader)
				convey.So(view.Prizes[0].Leader, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the assignment has a leader entered for the same prize", func() {
			leader := model.ProjectWithInstances{
				Project:   model.Project{ID: "project-a", Name: "A"},
				Instances: []model.JudgingInstance{{ID: "ji-a", ProjectID: "project-a", PrizeID: "prize-1", Sigma2: 1}},
			}
			session := model.JudgeSession{
				Judge: model.Judge{ID: "judge-1"},
				Assignments: []model.AssignmentDetail{{
					JudgePrizeAssignment: model.JudgePrizeAssignment{ID: "a-1", JudgeID: "judge-1", PrizeID: "prize-1", LeadingProjectID: strPtr("project-a")},
					Prize:                prize,
					Leader:               &leader,
				}},
				Next: &current,
			}
			view := model.NewSessionView(session)

			convey.Convey("Then the project is compared against the leader", func() {
				convey.So(view.Mode, convey.ShouldEqual, model.ModeComparison)
				convey.So(view.Prizes[0].State, convey.ShouldEqual, model.StateHasLeader)
				convey.So(view.Prizes[0].Comparable, convey.ShouldBeTrue)
				convey.So(view.Prizes[0].Leader.ID, convey.ShouldEqual, "project-a")
			})
		})

		convey.Convey("When the current project is not entered for the leader's prize", func() {
			leader := model.ProjectWithInstances{
				Project:   model.Project{ID: "project-a"},
				Instances: []model.JudgingInstance{{ID: "ji-a", ProjectID: "project-a", PrizeID: "prize-2", Sigma2: 1}},
			}
			session := model.JudgeSession{
				Assignments: []model.AssignmentDetail{{
					JudgePrizeAssignment: model.JudgePrizeAssignment{PrizeID: "prize-2", LeadingProjectID: strPtr("project-a")},
					Leader:               &leader,
				}},
				Next: &current,
			}
			view := model.NewSessionView(session)

			convey.Convey("Then nothing is comparable", func() {
				convey.So(view.Mode, convey.ShouldEqual, model.ModeFirstEncounter)
				convey.So(view.Prizes[0].Comparable, convey.ShouldBeFalse)
			})
		})
	})
}

func TestProjectWithInstances_Instance(t *testing.T) {
	convey.Convey("Given a project entered for one prize", t, func() {
		p := model.ProjectWithInstances{
			Instances: []model.JudgingInstance{{ID: "ji-1", PrizeID: "prize-1"}},
		}

		convey.Convey("Then lookups by prize find only that instance", func() {
			ji, ok := p.Instance("prize-1")
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(ji.ID, convey.ShouldEqual, "ji-1")

			_, ok = p.Instance("prize-2")
			convey.So(ok, convey.ShouldBeFalse)
		})
	})
}
