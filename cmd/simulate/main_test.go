package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"

	"github.com/okian/jury/internal/simulation"
)

func TestSimulateCommand(t *testing.T) {
	convey.Convey("Given a small simulation with a report file", t, func() {
		dir := t.TempDir()
		report := filepath.Join(dir, "report.yaml")
		var out bytes.Buffer

		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{
			"--judges", "3", "--prizes", "2", "--projects", "8",
			"--workers", "2", "--report", report, "--log", filepath.Join(dir, "sim.log"),
		})

		convey.Convey("When the command runs", func() {
			err := cmd.ExecuteContext(context.Background())

			convey.Convey("Then a summary is printed and the report is written", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "Simulated 3 judges, 2 prizes, 8 projects")
				convey.So(out.String(), convey.ShouldContainSubstring, "Mean Kendall tau")

				raw, err := os.ReadFile(report)
				convey.So(err, convey.ShouldBeNil)
				var decoded simulation.Report
				convey.So(yaml.Unmarshal(raw, &decoded), convey.ShouldBeNil)
				convey.So(decoded.Config.Projects, convey.ShouldEqual, 8)
			})
		})
	})

	convey.Convey("Given an unknown storage driver", t, func() {
		var out bytes.Buffer
		cmd := newRootCmd()
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"--driver", "mongo", "--log", filepath.Join(t.TempDir(), "sim.log")})

		convey.Convey("Then the command fails", func() {
			convey.So(cmd.ExecuteContext(context.Background()), convey.ShouldNotBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "simulation failed")
		})
	})
}
