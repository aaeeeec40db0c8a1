package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/shortlist/internal/adapters/repository"
	app "github.com/okian/shortlist/internal/app"
	"github.com/okian/shortlist/internal/config"
	"github.com/okian/shortlist/internal/domain/leaderboard"
	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/internal/domain/policy"
	"github.com/okian/shortlist/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// seededStore holds two teams scored 80 and 60 in one frozen round.
func seededStore(t *testing.T) (repository.Store, int64) {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	svc := app.New(app.WithStore(store), app.WithLogger(logger.Nop()), app.WithWorkerCount(1))

	for _, k := range []string{"alpha", "bravo"} {
		if _, err := svc.CreateTeam(ctx, policy.System, app.TeamInput{Key: k, Name: "Team " + k}); err != nil {
			t.Fatalf("create team: %v", err)
		}
	}
	eliminate := false
	r, err := svc.CreateRound(ctx, policy.System, app.RoundInput{
		EventID:            "hackathon",
		Number:             1,
		Name:               "Qualifier",
		Club:               "robotics",
		Criteria:           []model.Criterion{{Name: "overall", MaxPoints: 100}},
		EliminateAbsentees: &eliminate,
	})
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	for k, pts := range map[string]float64{"alpha": 80, "bravo": 60} {
		if _, err := svc.EvaluateTeam(ctx, policy.System, app.EvaluationInput{
			RoundID:        r.ID,
			TeamKey:        k,
			CriteriaScores: map[string]float64{"overall": pts},
		}); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if _, err := svc.FreezeRound(ctx, policy.System, r.ID); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	return store, r.ID
}

func runCommand(store repository.Store, args ...string) (string, error) {
	cmd := newRootCommand(func(context.Context, *config.Config) (repository.Store, error) {
		return store, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLeaderboardCommand(t *testing.T) {
	Convey("Given a store with one frozen round", t, func() {
		store, _ := seededStore(t)

		Convey("When the leaderboard is printed as a table", func() {
			out, err := runCommand(store, "leaderboard")

			Convey("Then teams should be listed best first", func() {
				So(err, ShouldBeNil)
				So(out, ShouldStartWith, "RANK")
				So(out, ShouldContainSubstring, "80.00")
				So(strings.Index(out, "alpha"), ShouldBeLessThan, strings.Index(out, "bravo"))
			})
		})

		Convey("When the active leaderboard is printed as JSON", func() {
			out, err := runCommand(store, "leaderboard", "--population", "active", "--json")
			So(err, ShouldBeNil)

			var standings []leaderboard.Standing
			So(json.Unmarshal([]byte(out), &standings), ShouldBeNil)

			Convey("Then it should decode into ranked standings", func() {
				So(standings, ShouldHaveLength, 2)
				So(standings[0].TeamKey, ShouldEqual, "alpha")
				So(standings[0].Rank, ShouldEqual, 1)
			})
		})

		Convey("When the population is unknown", func() {
			_, err := runCommand(store, "leaderboard", "--population", "everyone")

			Convey("Then the command should fail", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "unknown population")
			})
		})
	})
}

func TestExportRoundCommand(t *testing.T) {
	Convey("Given a store with one frozen round", t, func() {
		store, id := seededStore(t)

		Convey("When the round is exported to stdout sorted by score", func() {
			out, err := runCommand(store, "export-round", strconv.FormatInt(id, 10), "--sort-by", "score")

			Convey("Then the CSV should carry the header and every team", func() {
				So(err, ShouldBeNil)
				So(out, ShouldStartWith, "Team ID,Team Name")
				So(strings.Index(out, "alpha"), ShouldBeLessThan, strings.Index(out, "bravo"))
			})
		})

		Convey("When the round is exported to a file", func() {
			path := filepath.Join(t.TempDir(), "round.csv")
			out, err := runCommand(store, "export-round", strconv.FormatInt(id, 10), "-o", path)

			Convey("Then the file should hold the CSV and stdout stay empty", func() {
				So(err, ShouldBeNil)
				So(out, ShouldBeEmpty)
				data, rerr := os.ReadFile(path)
				So(rerr, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "Team alpha")
			})
		})

		Convey("When the arguments are invalid", func() {
			_, badID := runCommand(store, "export-round", "first")
			_, badSort := runCommand(store, "export-round", "1", "--sort-by", "rank")
			_, missing := runCommand(store, "export-round", "999")

			Convey("Then each should be rejected", func() {
				So(badID, ShouldNotBeNil)
				So(badSort, ShouldNotBeNil)
				So(missing, ShouldNotBeNil)
			})
		})
	})
}

func TestMigrateCommand(t *testing.T) {
	Convey("Given the memory store", t, func() {
		out, err := runCommand(repository.NewMemoryStore(), "migrate")

		Convey("Then there should be nothing to migrate", func() {
			So(err, ShouldBeNil)
			So(out, ShouldEqual, "memory store has no schema to migrate\n")
		})
	})
}
