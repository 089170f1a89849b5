package main

import (
	"bytes"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRootCmd(t *testing.T) {
	Convey("Given the root command", t, func() {
		cmd := newRootCmd()

		Convey("Then it exposes a config flag", func() {
			flag := cmd.Flags().Lookup("config")
			So(flag, ShouldNotBeNil)
			So(flag.Shorthand, ShouldEqual, "c")
		})

		Convey("When running the version subcommand", func() {
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"version"})
			So(cmd.Execute(), ShouldBeNil)

			Convey("Then the version is printed", func() {
				So(out.String(), ShouldEqual, "heroes-api dev\n")
			})
		})

		Convey("When the config file does not exist", func() {
			cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
			err := cmd.Execute()

			Convey("Then the error is returned instead of exiting", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "load config")
				So(err.Error(), ShouldContainSubstring, "does not exist")
			})
		})
	})
}
