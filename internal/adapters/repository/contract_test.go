package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/shortlist/internal/domain/model"
)

var errRollback = errors.New("rollback")

func seedTeam(ctx context.Context, s Store, key string) {
	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateTeam(ctx, &model.Team{
			Key:          key,
			Name:         "Team " + key,
			Status:       model.StatusActive,
			CurrentRound: 1,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		})
	})
	So(err, ShouldBeNil)
}

func seedRound(ctx context.Context, s Store, event string, number int) model.Round {
	r := model.Round{
		EventID:  event,
		Number:   number,
		Name:     "Round",
		Club:     "robotics",
		Criteria: []model.Criterion{{Name: "design", MaxPoints: 50}, {Name: "demo", MaxPoints: 50}},
	}
	err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.CreateRound(ctx, &r)
	})
	So(err, ShouldBeNil)
	So(r.ID, ShouldBeGreaterThan, 0)
	return r
}

// runStoreContract exercises the behavior every Store implementation shares.
func runStoreContract(t *testing.T, newStore func() Store) {
	ctx := context.Background()

	Convey("Given an empty store", t, func() {
		s := newStore()
		Reset(func() { _ = s.Close() })

		Convey("Teams are unique by key and listed in creation order", func() {
			seedTeam(ctx, s, "T2")
			seedTeam(ctx, s, "T1")
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				return tx.CreateTeam(ctx, &model.Team{Key: "T1", Name: "dup", Status: model.StatusActive})
			})
			So(errors.Is(err, ErrDuplicate), ShouldBeTrue)

			var teams []model.Team
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				teams, err = tx.Teams(ctx, TeamFilter{})
				return err
			}), ShouldBeNil)
			So(len(teams), ShouldEqual, 2)
			So(teams[0].Key, ShouldEqual, "T2")
			So(teams[1].Key, ShouldEqual, "T1")
		})

		Convey("Unknown records report ErrNotFound", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				_, err := tx.Team(ctx, "missing")
				return err
			})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			err = s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				_, err := tx.Round(ctx, 999, false)
				return err
			})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)

			err = s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				_, _, err := tx.WeightOrDefault(ctx, 999, 100)
				return err
			})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("A failing transaction leaves no trace", func() {
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				if err := tx.CreateTeam(ctx, &model.Team{Key: "T9", Name: "gone", Status: model.StatusActive}); err != nil {
					return err
				}
				return errRollback
			})
			So(errors.Is(err, errRollback), ShouldBeTrue)

			err = s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				_, err := tx.Team(ctx, "T9")
				return err
			})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Rounds are unique per event and number", func() {
			seedRound(ctx, s, "ev", 1)
			dup := model.Round{EventID: "ev", Number: 1}
			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.CreateRound(ctx, &dup) })
			So(errors.Is(err, ErrDuplicate), ShouldBeTrue)

			other := model.Round{EventID: "other", Number: 1}
			err = s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.CreateRound(ctx, &other) })
			So(err, ShouldBeNil)
		})

		Convey("Round updates round-trip criteria, stats and shortlist", func() {
			r := seedRound(ctx, s, "ev", 1)
			r.IsFrozen = true
			r.IsEvaluated = true
			r.Stats = &model.RoundStats{MaxScore: 90, MinScore: 40, AvgScore: 65, ParticipatedCount: 3}
			r.ShortlistedTeams = []string{"T1", "T2"}
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.UpdateRound(ctx, r) }), ShouldBeNil)

			var got model.Round
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				got, err = tx.Round(ctx, r.ID, true)
				return err
			}), ShouldBeNil)
			So(got.IsFrozen, ShouldBeTrue)
			So(got.IsEvaluated, ShouldBeTrue)
			So(got.Stats, ShouldNotBeNil)
			So(got.Stats.ParticipatedCount, ShouldEqual, 3)
			So(got.Stats.AvgScore, ShouldEqual, 65)
			So(got.ShortlistedTeams, ShouldResemble, []string{"T1", "T2"})
			So(len(got.Criteria), ShouldEqual, 2)
			So(got.Criteria[0].Name, ShouldEqual, "design")
		})

		Convey("In-scope filtering keeps frozen or evaluated rounds", func() {
			open := seedRound(ctx, s, "ev", 1)
			frozen := seedRound(ctx, s, "ev", 2)
			frozen.IsFrozen = true
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.UpdateRound(ctx, frozen) }), ShouldBeNil)

			var rounds []model.Round
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				rounds, err = tx.Rounds(ctx, RoundFilter{InScope: true})
				return err
			}), ShouldBeNil)
			So(len(rounds), ShouldEqual, 1)
			So(rounds[0].ID, ShouldEqual, frozen.ID)
			So(rounds[0].ID, ShouldNotEqual, open.ID)
		})

		Convey("Upserting a score keeps its identity", func() {
			seedTeam(ctx, s, "T1")
			r := seedRound(ctx, s, "ev", 1)

			first := model.TeamScore{
				TeamKey: "T1", RoundID: r.ID, EventID: "ev",
				RawTotal: 40, Score: 40, IsNormalized: true, IsPresent: true,
				CriteriaScores: map[string]float64{"design": 20, "demo": 20},
				CreatedAt:      time.Now().UTC(), UpdatedAt: time.Now().UTC(),
			}
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.UpsertScore(ctx, &first) }), ShouldBeNil)

			second := first
			second.ID = 0
			second.RawTotal, second.Score = 80, 80
			second.CriteriaScores = map[string]float64{"design": 40, "demo": 40}
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.UpsertScore(ctx, &second) }), ShouldBeNil)
			So(second.ID, ShouldEqual, first.ID)

			var scores []model.TeamScore
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				scores, err = tx.Scores(ctx, ScoreFilter{RoundID: r.ID})
				return err
			}), ShouldBeNil)
			So(len(scores), ShouldEqual, 1)
			So(scores[0].Score, ShouldEqual, 80)
			So(scores[0].CriteriaScores["design"], ShouldEqual, 40)
		})

		Convey("Concurrent default weight creation yields one row", func() {
			r := seedRound(ctx, s, "ev", 1)

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				created int
				seen    []float64
				errs    []error
			)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					var w model.RoundWeight
					var c bool
					err := s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
						w, c, err = tx.WeightOrDefault(ctx, r.ID, 100)
						return err
					})
					mu.Lock()
					defer mu.Unlock()
					if err != nil {
						errs = append(errs, err)
						return
					}
					if c {
						created++
					}
					seen = append(seen, w.Percentage)
				}()
			}
			wg.Wait()

			So(errs, ShouldBeEmpty)
			So(created, ShouldEqual, 1)
			So(len(seen), ShouldEqual, 50)
			for _, p := range seen {
				So(p, ShouldEqual, 100)
			}
		})

		Convey("Batch weights create only what is missing", func() {
			r1 := seedRound(ctx, s, "ev", 1)
			r2 := seedRound(ctx, s, "ev", 2)
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				return tx.PutWeight(ctx, model.RoundWeight{RoundID: r1.ID, Percentage: 150})
			}), ShouldBeNil)

			var (
				weights map[int64]float64
				created int
			)
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				weights, created, err = tx.WeightsOrDefault(ctx, []int64{r1.ID, r2.ID}, 100)
				return err
			}), ShouldBeNil)
			So(created, ShouldEqual, 1)
			So(weights[r1.ID], ShouldEqual, 150)
			So(weights[r2.ID], ShouldEqual, 100)
		})

		Convey("Team status changes count only real transitions", func() {
			seedTeam(ctx, s, "T1")
			seedTeam(ctx, s, "T2")
			var n int
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				if _, err = tx.SetTeamStatus(ctx, []string{"T1"}, model.StatusEliminated, time.Now().UTC()); err != nil {
					return err
				}
				n, err = tx.SetTeamStatus(ctx, []string{"T1", "T2"}, model.StatusEliminated, time.Now().UTC())
				return err
			}), ShouldBeNil)
			So(n, ShouldEqual, 1)

			var active []model.Team
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				active, err = tx.Teams(ctx, TeamFilter{Status: model.StatusActive})
				return err
			}), ShouldBeNil)
			So(active, ShouldBeEmpty)
		})

		Convey("Deleting a round removes its scores and weight", func() {
			seedTeam(ctx, s, "T1")
			r := seedRound(ctx, s, "ev", 1)
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error {
				if err := tx.UpsertScore(ctx, &model.TeamScore{TeamKey: "T1", RoundID: r.ID, Score: 10, IsPresent: true}); err != nil {
					return err
				}
				_, _, err := tx.WeightOrDefault(ctx, r.ID, 100)
				return err
			}), ShouldBeNil)

			So(s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.DeleteRound(ctx, r.ID) }), ShouldBeNil)

			var scores []model.TeamScore
			So(s.InTx(ctx, func(ctx context.Context, tx Tx) (err error) {
				scores, err = tx.Scores(ctx, ScoreFilter{TeamKey: "T1"})
				return err
			}), ShouldBeNil)
			So(scores, ShouldBeEmpty)

			err := s.InTx(ctx, func(ctx context.Context, tx Tx) error { return tx.DeleteRound(ctx, r.ID) })
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}
