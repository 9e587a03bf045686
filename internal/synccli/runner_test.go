package synccli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/rollcall/internal/domain/model"
	"github.com/okian/rollcall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

type fakeService struct {
	jobs    []model.SyncJob
	syncErr error
	ranks   []int
	rows    []model.CharacterAttendanceStats
}

func (f *fakeService) Sync(_ context.Context, job model.SyncJob) (int, error) {
	f.jobs = append(f.jobs, job)
	if f.syncErr != nil {
		return 0, f.syncErr
	}
	return 3, nil
}

func (f *fakeService) GuildAttendance(context.Context) ([]model.CharacterAttendanceStats, error) {
	return f.rows, nil
}

func (f *fakeService) RankAttendance(_ context.Context, rankIDs []int) ([]model.CharacterAttendanceStats, error) {
	f.ranks = rankIDs
	return f.rows[:1], nil
}

func newFake() *fakeService {
	return &fakeService{rows: []model.CharacterAttendanceStats{
		{ID: 1, Name: "Alice", FirstAttendance: time.Date(2025, time.June, 1, 20, 0, 0, 0, time.UTC), TotalReports: 4, ReportsAttended: 3, Percentage: 75},
		{ID: 2, Name: "Bob", FirstAttendance: time.Date(2025, time.June, 2, 20, 0, 0, 0, time.UTC), TotalReports: 3, ReportsAttended: 2, Percentage: 66.67},
	}}
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service", t, func() {
		svc := newFake()
		var out bytes.Buffer

		Convey("When a table run syncs two tags", func() {
			cfg := &Config{TagIDs: []int{10, 30}, ZoneID: 1005, Fresh: true, Format: FormatTable}
			stats, err := Run(ctx, cfg, svc, &out)

			Convey("Then one job carries the options", func() {
				So(err, ShouldBeNil)
				So(svc.jobs, ShouldHaveLength, 1)
				job := svc.jobs[0]
				So(job.ID, ShouldNotBeBlank)
				So(job.TagIDs, ShouldResemble, []int{10, 30})
				So(job.ZoneID, ShouldEqual, 1005)
				So(job.Fresh, ShouldBeTrue)
				So(job.Attempt, ShouldEqual, 1)
				So(stats.ReportsWritten, ShouldEqual, 3)
				So(stats.Characters, ShouldEqual, 2)
			})

			Convey("Then the table lists every character", func() {
				lines := strings.Split(strings.TrimSpace(out.String()), "\n")
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldStartWith, "NAME")
				So(lines[1], ShouldContainSubstring, "Alice")
				So(lines[1], ShouldContainSubstring, "2025-06-01")
				So(lines[1], ShouldContainSubstring, "75.00")
				So(lines[2], ShouldContainSubstring, "66.67")
			})
		})

		Convey("When the export format is requested", func() {
			_, err := Run(ctx, &Config{Format: FormatExport}, svc, &out)
			So(err, ShouldBeNil)

			Convey("Then the export shape is written", func() {
				var got []model.AttendanceExport
				So(json.Unmarshal(out.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].Name, ShouldEqual, "Alice")
				So(got[0].Attendance.Attended, ShouldEqual, 3)
				So(got[0].Attendance.Total, ShouldEqual, 4)
			})
		})

		Convey("When ranks are given and sync is skipped", func() {
			_, err := Run(ctx, &Config{Format: FormatJSON, RankIDs: []int{9}, SkipSync: true}, svc, &out)

			Convey("Then only rank attendance is read", func() {
				So(err, ShouldBeNil)
				So(svc.jobs, ShouldBeEmpty)
				So(svc.ranks, ShouldResemble, []int{9})
				var got []model.CharacterAttendanceStats
				So(json.Unmarshal(out.Bytes(), &got), ShouldBeNil)
				So(got, ShouldHaveLength, 1)
			})
		})

		Convey("When the sync fails", func() {
			boom := errors.New("boom")
			svc.syncErr = boom
			_, err := Run(ctx, &Config{Format: FormatTable}, svc, &out)

			Convey("Then the error is wrapped and nothing is printed", func() {
				So(errors.Is(err, boom), ShouldBeTrue)
				So(out.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the format is unknown", func() {
			_, err := Run(ctx, &Config{Format: "xml"}, svc, &out)

			Convey("Then nothing runs", func() {
				So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
				So(svc.jobs, ShouldBeEmpty)
			})
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given inconsistent rows", t, func() {
		rows := []model.CharacterAttendanceStats{
			{Name: "Zed", TotalReports: 1, ReportsAttended: 2, Percentage: 200},
			{Name: "Amy", TotalReports: 1, ReportsAttended: 1, Percentage: 100},
		}

		Convey("Then every problem is reported", func() {
			So(verify(rows), ShouldHaveLength, 3)
			So(verify(newFake().rows), ShouldBeEmpty)
		})
	})
}

func TestParsing(t *testing.T) {
	Convey("Given id lists", t, func() {
		ids, err := ParseIDs(" 10, 30 ")
		So(err, ShouldBeNil)
		So(ids, ShouldResemble, []int{10, 30})

		ids, err = ParseIDs("")
		So(err, ShouldBeNil)
		So(ids, ShouldBeNil)

		_, err = ParseIDs("10,x")
		So(errors.Is(err, ErrBadID), ShouldBeTrue)
		_, err = ParseIDs("0")
		So(errors.Is(err, ErrBadID), ShouldBeTrue)
	})

	Convey("Given since values", t, func() {
		d, err := ParseSince("2025-06-01")
		So(err, ShouldBeNil)
		So(d, ShouldEqual, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

		ts, err := ParseSince("2025-06-01T20:00:00Z")
		So(err, ShouldBeNil)
		So(ts.Hour(), ShouldEqual, 20)

		zero, err := ParseSince("")
		So(err, ShouldBeNil)
		So(zero.IsZero(), ShouldBeTrue)

		_, err = ParseSince("June")
		So(errors.Is(err, ErrBadSince), ShouldBeTrue)
	})

	Convey("Given the help text", t, func() {
		var b bytes.Buffer
		ShowHelp(&b)
		So(b.String(), ShouldContainSubstring, "-format")
	})
}
