package raidday_test

import (
	"testing"
	"time"

	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/internal/domain/raidday"
	. "github.com/smartystreets/goconvey/convey"
)

var cest = time.FixedZone("CEST", 2*60*60)

func at(loc *time.Location, y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, loc).UTC()
}

func record(code string, start time.Time, players map[string]model.Presence) model.RaidRecord {
	r := model.RaidRecord{Code: code, StartTime: start, Players: map[string]model.PlayerPresence{}}
	for name, p := range players {
		r.Players[name] = model.PlayerPresence{Presence: p}
	}
	return r
}

func TestGrouperKey(t *testing.T) {
	Convey("Given a grouper in a +02:00 timezone", t, func() {
		g := raidday.New(raidday.WithLocation(cest))

		Convey("When a raid starts at 00:30 local", func() {
			start := at(cest, 2025, time.June, 2, 0, 30)

			Convey("Then it belongs to the previous evening", func() {
				So(g.Date(start), ShouldEqual, "2025-06-01")
			})
		})

		Convey("When a raid starts at 05:00 local", func() {
			start := at(cest, 2025, time.June, 2, 5, 0)

			Convey("Then it opens a new raid day", func() {
				So(g.Date(start), ShouldEqual, "2025-06-02")
			})
		})

		Convey("When a raid starts at 04:59 local", func() {
			start := at(cest, 2025, time.June, 2, 4, 59)

			Convey("Then it still belongs to the previous raid day", func() {
				So(g.Date(start), ShouldEqual, "2025-06-01")
			})
		})

		Convey("When the same instant is keyed in UTC", func() {
			utc := raidday.New()
			start := at(cest, 2025, time.June, 2, 6, 30) // 04:30 UTC

			Convey("Then the timezone changes the result", func() {
				So(g.Date(start), ShouldEqual, "2025-06-02")
				So(utc.Date(start), ShouldEqual, "2025-06-01")
			})
		})
	})

	Convey("Given invalid options", t, func() {
		g := raidday.New(raidday.WithLocation(nil), raidday.WithOffset(-time.Hour))

		Convey("Then defaults are kept", func() {
			So(g.Location(), ShouldEqual, time.UTC)
			So(g.Date(time.Date(2025, 6, 2, 4, 0, 0, 0, time.UTC)), ShouldEqual, "2025-06-01")
		})
	})
}

func TestSortRecords(t *testing.T) {
	Convey("Given unsorted records with equal start times", t, func() {
		t0 := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
		in := []model.RaidRecord{
			{Code: "c", StartTime: t0.Add(time.Hour)},
			{Code: "a", StartTime: t0},
			{Code: "b", StartTime: t0},
		}

		Convey("When sorting", func() {
			out := raidday.SortRecords(in)

			Convey("Then order is ascending and stable and the input is untouched", func() {
				So(out[0].Code, ShouldEqual, "a")
				So(out[1].Code, ShouldEqual, "b")
				So(out[2].Code, ShouldEqual, "c")
				So(in[0].Code, ShouldEqual, "c")
			})
		})
	})
}

func TestMerge(t *testing.T) {
	Convey("Given a grouper in a +02:00 timezone", t, func() {
		g := raidday.New(raidday.WithLocation(cest))

		Convey("When two raids fall on the same raid day", func() {
			first := record("R1", at(cest, 2025, time.June, 1, 20, 0), map[string]model.Presence{
				"A": model.Present,
				"B": model.Absent,
			})
			second := record("R2", at(cest, 2025, time.June, 1, 23, 30), map[string]model.Presence{
				"A": model.Absent,
				"B": model.Benched,
				"C": model.Present,
			})

			merged := g.Merge([]model.RaidRecord{first, second})

			Convey("Then they collapse into one record", func() {
				So(merged, ShouldHaveLength, 1)
				So(merged[0].Code, ShouldEqual, "R1+R2")
				So(merged[0].StartTime, ShouldEqual, first.StartTime)
			})

			Convey("Then the best presence wins per character", func() {
				So(merged[0].Players["A"].Presence, ShouldEqual, model.Present)
				So(merged[0].Players["B"].Presence, ShouldEqual, model.Benched)
				So(merged[0].Players["C"].Presence, ShouldEqual, model.Present)
			})
		})

		Convey("When a raid starts after midnight", func() {
			evening := record("R1", at(cest, 2025, time.June, 1, 21, 0), map[string]model.Presence{"A": model.Benched})
			late := record("R2", at(cest, 2025, time.June, 2, 0, 30), map[string]model.Presence{"A": model.Present})
			next := record("R3", at(cest, 2025, time.June, 2, 20, 0), map[string]model.Presence{"A": model.Absent})

			merged := g.Merge([]model.RaidRecord{evening, late, next})

			Convey("Then it merges into the previous evening", func() {
				So(merged, ShouldHaveLength, 2)
				So(merged[0].Code, ShouldEqual, "R1+R2")
				So(merged[0].Players["A"].Presence, ShouldEqual, model.Present)
				So(merged[1].Code, ShouldEqual, "R3")
			})

			Convey("And merging again changes nothing", func() {
				So(g.Merge(merged), ShouldResemble, merged)
			})
		})

		Convey("When ties occur", func() {
			first := model.RaidRecord{Code: "R1", StartTime: at(cest, 2025, time.June, 1, 20, 0), Players: map[string]model.PlayerPresence{
				"A": {CharacterID: 1, Presence: model.Benched, RankID: model.IntPtr(3)},
			}}
			second := model.RaidRecord{Code: "R2", StartTime: at(cest, 2025, time.June, 1, 22, 0), Players: map[string]model.PlayerPresence{
				"A": {CharacterID: 1, Presence: model.Benched, RankID: model.IntPtr(4)},
			}}

			merged := g.Merge([]model.RaidRecord{first, second})

			Convey("Then the first-seen entry is kept", func() {
				So(*merged[0].Players["A"].RankID, ShouldEqual, 3)
			})
		})

		Convey("When the input is empty", func() {
			Convey("Then the output is empty, not nil", func() {
				out := g.Merge(nil)
				So(out, ShouldNotBeNil)
				So(out, ShouldBeEmpty)
			})
		})

		Convey("When every raid is on its own day", func() {
			in := []model.RaidRecord{
				record("R1", at(cest, 2025, time.June, 1, 20, 0), nil),
				record("R2", at(cest, 2025, time.June, 3, 20, 0), nil),
			}

			Convey("Then records pass through unchanged", func() {
				So(g.Merge(in), ShouldResemble, in)
			})
		})
	})
}
