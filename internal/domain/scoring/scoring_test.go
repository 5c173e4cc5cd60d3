package scoring_test

import (
	"testing"

	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAggregate(t *testing.T) {
	Convey("Given the weighted aggregation formula", t, func() {
		Convey("When aggregating a single record", func() {
			pp, acc := scoring.Aggregate([]model.BestScore{
				{PP: 100, Acc: 95},
			})

			Convey("Then the rating should match the published reference", func() {
				// weighted = 100, bonus = 416.6667*(1-0.9994) ~= 0.2499,
				// round(100.2499) = 100
				So(pp, ShouldAlmostEqual, 100, 1e-3)
			})

			Convey("And the accuracy should collapse to the single record", func() {
				// divisor = 100/(20*(1-0.95)) = 100, acc = 95*100/100
				So(acc, ShouldAlmostEqual, 95, 1e-9)
			})
		})

		Convey("When aggregating several records", func() {
			pp, acc := scoring.Aggregate([]model.BestScore{
				{PP: 400, Acc: 99},
				{PP: 300, Acc: 97},
				{PP: 200, Acc: 95},
			})

			Convey("Then each record should decay by 0.95 per rank", func() {
				weighted := 400.0 + 300.0*0.95 + 200.0*0.95*0.95
				bonus := 416.6667 * (1.0 - 0.9994*0.9994*0.9994)
				So(pp, ShouldAlmostEqual, float64(int64(weighted+bonus+0.5)), 1.0)
			})

			Convey("And the accuracy should stay within the record range", func() {
				So(acc, ShouldBeGreaterThan, 95)
				So(acc, ShouldBeLessThan, 100)
			})
		})

		Convey("When the record order changes", func() {
			ascending, _ := scoring.Aggregate([]model.BestScore{
				{PP: 200, Acc: 95},
				{PP: 400, Acc: 99},
			})
			descending, _ := scoring.Aggregate([]model.BestScore{
				{PP: 400, Acc: 99},
				{PP: 200, Acc: 95},
			})

			Convey("Then descending input should weight the best record fully", func() {
				So(descending, ShouldBeGreaterThan, ascending)
			})
		})

		Convey("When aggregating twice with the same input", func() {
			best := []model.BestScore{{PP: 123.4, Acc: 96.2}, {PP: 88.8, Acc: 91.1}}
			pp1, acc1 := scoring.Aggregate(best)
			pp2, acc2 := scoring.Aggregate(best)

			Convey("Then the result should be identical", func() {
				So(pp1, ShouldEqual, pp2)
				So(acc1, ShouldEqual, acc2)
			})
		})
	})
}
