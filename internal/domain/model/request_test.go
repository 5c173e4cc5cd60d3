package model_test

import (
	"testing"

	"github.com/refx-online/omajinai/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCalculationRequestValidate(t *testing.T) {
	Convey("Given a well-formed calculation request", t, func() {
		req := &model.CalculationRequest{
			BeatmapID: 1917,
			Mode:      model.ModeOsu,
			Accuracy:  98.5,
		}

		Convey("Then it should validate", func() {
			So(req.Validate(), ShouldBeNil)
		})

		Convey("When the beatmap id is missing", func() {
			req.BeatmapID = 0

			Convey("Then validation should fail with the missing-id kind", func() {
				So(req.Validate(), ShouldWrap, model.ErrMissingBeatmapID)
			})
		})

		Convey("When the mode is outside the base range", func() {
			req.Mode = 4

			Convey("Then validation should fail with the game-mode kind", func() {
				So(req.Validate(), ShouldWrap, model.ErrInvalidGameMode)
			})
		})

		Convey("When the accuracy is below zero", func() {
			req.Accuracy = -0.1

			Convey("Then validation should fail with the accuracy kind", func() {
				So(req.Validate(), ShouldWrap, model.ErrInvalidAccuracy)
			})
		})

		Convey("When the accuracy is above one hundred", func() {
			req.Accuracy = 100.01

			Convey("Then validation should fail with the accuracy kind", func() {
				So(req.Validate(), ShouldWrap, model.ErrInvalidAccuracy)
			})
		})

		Convey("When a legacy score is combined with the new format flag", func() {
			score := int64(727727)
			newFormat := true
			req.LegacyScore = &score
			req.NewFormat = &newFormat

			Convey("Then validation should fail with the format-conflict kind", func() {
				So(req.Validate(), ShouldWrap, model.ErrFormatConflict)
			})
		})

		Convey("When a legacy score is combined with an explicit legacy flag", func() {
			score := int64(727727)
			newFormat := false
			req.LegacyScore = &score
			req.NewFormat = &newFormat

			Convey("Then it should validate", func() {
				So(req.Validate(), ShouldBeNil)
			})
		})
	})
}

func TestBaseMode(t *testing.T) {
	Convey("Given the compound mode codes used by the host server", t, func() {
		Convey("Then each should reduce to its base mode", func() {
			So(model.BaseMode(0), ShouldEqual, 0)
			So(model.BaseMode(3), ShouldEqual, 3)
			So(model.BaseMode(4), ShouldEqual, 0)
			So(model.BaseMode(5), ShouldEqual, 1)
			So(model.BaseMode(6), ShouldEqual, 2)
			So(model.BaseMode(8), ShouldEqual, 0)
			So(model.BaseMode(12), ShouldEqual, 0)
			So(model.BaseMode(16), ShouldEqual, 0)
			So(model.BaseMode(20), ShouldEqual, 0)
		})
	})
}

func TestIsValidationError(t *testing.T) {
	Convey("Given the validation sentinel kinds", t, func() {
		Convey("Then each should be recognized as a validation error", func() {
			So(model.IsValidationError(model.ErrMissingBeatmapID), ShouldBeTrue)
			So(model.IsValidationError(model.ErrInvalidGameMode), ShouldBeTrue)
			So(model.IsValidationError(model.ErrInvalidAccuracy), ShouldBeTrue)
			So(model.IsValidationError(model.ErrFormatConflict), ShouldBeTrue)
		})

		Convey("And an unrelated error should not be", func() {
			So(model.IsValidationError(nil), ShouldBeFalse)
		})
	})
}
