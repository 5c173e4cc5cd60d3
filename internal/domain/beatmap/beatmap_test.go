package beatmap_test

import (
	"testing"

	"github.com/refx-online/omajinai/internal/domain/beatmap"
	. "github.com/smartystreets/goconvey/convey"
)

const sampleChart = `osu file format v14

[General]
Mode: 1

[Metadata]
Title:FREEDOM DiVE
Artist:xi
Version:FOUR DIMENSIONS

[HitObjects]
256,192,1000,1,0
256,192,1500,1,0
256,192,2000,1,0
`

func TestFromBytes(t *testing.T) {
	Convey("Given raw chart bytes", t, func() {
		Convey("When parsing a well-formed chart", func() {
			bm, err := beatmap.FromBytes(129891, []byte(sampleChart))

			Convey("Then the metadata and counts should be populated", func() {
				So(err, ShouldBeNil)
				So(bm.ID, ShouldEqual, 129891)
				So(bm.FormatVersion, ShouldEqual, 14)
				So(bm.Mode, ShouldEqual, 1)
				So(bm.Title, ShouldEqual, "FREEDOM DiVE")
				So(bm.Artist, ShouldEqual, "xi")
				So(bm.Version, ShouldEqual, "FOUR DIMENSIONS")
				So(bm.ObjectCount, ShouldEqual, 3)
			})

			Convey("And the raw bytes should round-trip untouched", func() {
				So(err, ShouldBeNil)
				So(string(bm.Raw()), ShouldEqual, sampleChart)
			})

			Convey("And a clone should be equal but independent", func() {
				So(err, ShouldBeNil)
				clone := bm.Clone()
				So(clone, ShouldNotEqual, bm)
				So(*clone, ShouldResemble, *bm)
			})
		})

		Convey("When parsing empty bytes", func() {
			_, err := beatmap.FromBytes(1, nil)

			Convey("Then it should fail as malformed", func() {
				So(err, ShouldWrap, beatmap.ErrMalformed)
			})
		})

		Convey("When the format header is missing", func() {
			_, err := beatmap.FromBytes(1, []byte("this is not a chart"))

			Convey("Then it should fail as malformed", func() {
				So(err, ShouldWrap, beatmap.ErrMalformed)
			})
		})

		Convey("When the chart has no hit objects", func() {
			_, err := beatmap.FromBytes(1, []byte("osu file format v14\n\n[Metadata]\nTitle:empty\n"))

			Convey("Then it should fail as malformed", func() {
				So(err, ShouldWrap, beatmap.ErrMalformed)
			})
		})
	})
}
