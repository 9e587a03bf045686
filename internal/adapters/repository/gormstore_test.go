package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/rollcall/internal/adapters/repository"
	"github.com/okian/rollcall/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func newStore() *repository.GormStore {
	s, err := repository.Open(repository.DriverSQLite, ":memory:")
	So(err, ShouldBeNil)
	return s
}

func raidAt(d int) time.Time {
	return time.Date(2025, time.June, d, 19, 30, 0, 0, time.UTC)
}

func seed(ctx context.Context, s *repository.GormStore) {
	So(s.UpsertCharacters(ctx, []model.Character{
		{ID: 1, Name: "Alice", ClassName: "Mage", RankID: model.IntPtr(1)},
		{ID: 2, Name: "Bob", ClassName: "Rogue", RankID: model.IntPtr(2)},
		{ID: 3, Name: "Cara", ClassName: "Priest", RankID: model.IntPtr(9)},
	}), ShouldBeNil)
	So(s.UpsertTags(ctx, []model.GuildTag{{ID: 10, Name: "Main"}, {ID: 20, Name: "Alt"}}), ShouldBeNil)
	So(s.SetCountingRanks(ctx, []int{1, 2}), ShouldBeNil)
	So(s.SetCountingTags(ctx, []int{10}), ShouldBeNil)

	n, err := s.UpsertReport(ctx, model.RaidRecord{
		Code: "R1", StartTime: raidAt(1), ZoneID: 38,
		Players: map[string]model.PlayerPresence{
			"Alice":   {Presence: model.Present},
			"Bob":     {Presence: model.Benched},
			"Unknown": {Presence: model.Present},
		},
	}, model.IntPtr(10))
	So(err, ShouldBeNil)
	So(n, ShouldEqual, 2)

	_, err = s.UpsertReport(ctx, model.RaidRecord{
		Code: "R2", StartTime: raidAt(2), ZoneID: 39,
		Players: map[string]model.PlayerPresence{
			"Alice": {Presence: model.Absent},
			"Cara":  {Presence: model.Present},
		},
	}, model.IntPtr(20))
	So(err, ShouldBeNil)
}

func TestGormStoreLookups(t *testing.T) {
	ctx := context.Background()

	Convey("Given a seeded store", t, func() {
		s := newStore()
		Reset(func() { _ = s.Close() })
		seed(ctx, s)

		Convey("Then counting ranks and tags are listed", func() {
			ranks, err := s.CountingRankIDs(ctx)
			So(err, ShouldBeNil)
			So(ranks, ShouldResemble, []int{1, 2})
			tags, err := s.CountingTagIDs(ctx)
			So(err, ShouldBeNil)
			So(tags, ShouldResemble, []int{10})
		})

		Convey("Then counting flags are replaced, not merged", func() {
			So(s.SetCountingRanks(ctx, []int{9}), ShouldBeNil)
			ranks, err := s.CountingRankIDs(ctx)
			So(err, ShouldBeNil)
			So(ranks, ShouldResemble, []int{9})
		})

		Convey("Then characters are filtered by current rank", func() {
			chars, err := s.Characters(ctx, []int{1, 2})
			So(err, ShouldBeNil)
			So(chars, ShouldHaveLength, 2)
			So(chars[0].Name, ShouldEqual, "Alice")
			So(chars[0].ClassName, ShouldEqual, "Mage")

			all, err := s.Characters(ctx, nil)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 3)

			none, err := s.Characters(ctx, []int{})
			So(err, ShouldBeNil)
			So(none, ShouldBeEmpty)
		})

		Convey("Then lookups by key work and miss with ErrNotFound", func() {
			c, err := s.CharacterByName(ctx, "Bob")
			So(err, ShouldBeNil)
			So(c.ID, ShouldEqual, 2)

			_, err = s.CharacterByName(ctx, "Nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			r, err := s.ReportByCode(ctx, "R1")
			So(err, ShouldBeNil)
			So(*r.GuildTagID, ShouldEqual, 10)
			So(r.StartTime.Equal(raidAt(1)), ShouldBeTrue)

			_, err = s.ReportByCode(ctx, "nope")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then counts reflect what was stored", func() {
			chars, reports, err := s.Counts(ctx)
			So(err, ShouldBeNil)
			So(chars, ShouldEqual, int64(3))
			So(reports, ShouldEqual, int64(2))
		})

		Convey("Then the connection answers a ping", func() {
			So(s.Ping(ctx), ShouldBeNil)
		})
	})
}

func TestGormStoreReports(t *testing.T) {
	ctx := context.Background()

	Convey("Given a seeded store", t, func() {
		s := newStore()
		Reset(func() { _ = s.Close() })
		seed(ctx, s)

		Convey("When every report is loaded", func() {
			out, err := s.Reports(ctx, model.ReportFilter{})

			Convey("Then reports come oldest first with presences and rank at the time", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[0].Code, ShouldEqual, "R1")
				So(out[0].Players, ShouldHaveLength, 2)
				So(out[0].Players["Bob"].Presence, ShouldEqual, model.Benched)
				So(*out[0].Players["Bob"].RankID, ShouldEqual, 2)
				So(out[1].Players["Cara"].CharacterID, ShouldEqual, 3)
			})
		})

		Convey("When filtered by tag", func() {
			out, err := s.Reports(ctx, model.ReportFilter{TagIDs: []int{10}})

			Convey("Then only reports under that tag remain", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].Code, ShouldEqual, "R1")
			})
		})

		Convey("When filtered by rank at the time", func() {
			out, err := s.Reports(ctx, model.ReportFilter{RankIDs: []int{1, 2}})

			Convey("Then reports stay but other ranks' presences are dropped", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 2)
				So(out[1].Players, ShouldHaveLength, 1)
				So(out[1].Players, ShouldContainKey, "Alice")
			})
		})

		Convey("When filtered by time, zone and character", func() {
			since := raidAt(2)
			out, err := s.Reports(ctx, model.ReportFilter{
				Since:        &since,
				ZoneIDs:      []int{39},
				CharacterIDs: []int{3},
			})

			Convey("Then only the matching report and character remain", func() {
				So(err, ShouldBeNil)
				So(out, ShouldHaveLength, 1)
				So(out[0].Players, ShouldHaveLength, 1)
				So(out[0].Players, ShouldContainKey, "Cara")
			})
		})

		Convey("When a character changes rank after a raid", func() {
			So(s.UpsertCharacters(ctx, []model.Character{{ID: 2, Name: "Bob", RankID: model.IntPtr(9)}}), ShouldBeNil)
			out, err := s.Reports(ctx, model.ReportFilter{Codes: []string{"R1"}})

			Convey("Then the stored rank at the time is unchanged", func() {
				So(err, ShouldBeNil)
				So(*out[0].Players["Bob"].RankID, ShouldEqual, 2)
			})
		})
	})

	Convey("Given an unsupported driver", t, func() {
		_, err := repository.Open("oracle", "")
		So(errors.Is(err, repository.ErrUnsupportedDriver), ShouldBeTrue)
	})
}
