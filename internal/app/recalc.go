// Package app wires the performance service: the on-demand calculation path
// and the bulk recalculation engine.
package app

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/refx-online/omajinai/internal/adapters/engine"
	"github.com/refx-online/omajinai/internal/adapters/mq/bus"
	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/internal/domain/mods"
	"github.com/refx-online/omajinai/internal/domain/scoring"
	"github.com/refx-online/omajinai/pkg/logger"
	"github.com/refx-online/omajinai/pkg/metrics"
)

// Compound mode codes whose scoring policy never grants the relax mod's
// effect: the client ships two relaxes in these variants and players cannot
// adapt to the relax nerf.
const (
	modeRelaxVariantA = 12
	modeRelaxVariantB = 16
)

// ScoreStore is what the recalculation engine needs from the relational
// store. Streaming methods consume rows incrementally.
type ScoreStore interface {
	EachEligibleScore(ctx context.Context, mode int, fn func(model.Score)) error
	EachUserID(ctx context.Context, fn func(int64)) error
	BestScores(ctx context.Context, userID int64, mode int) ([]model.BestScore, error)
	UpdateScorePP(ctx context.Context, id uint64, pp float64) error
	UpdateUserStats(ctx context.Context, userID int64, mode int, pp, acc float64) error
	UserInfo(ctx context.Context, userID int64) (model.UserInfo, error)
}

// RankingStore updates the derived leaderboard sorted sets.
type RankingStore interface {
	Update(ctx context.Context, mode int, userID int64, country string, rating int) error
}

// MessageBus carries trigger and completion messages.
type MessageBus interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
	Publish(ctx context.Context, channel, payload string) error
}

// BeatmapSource resolves beatmap ids to parsed charts.
type BeatmapSource interface {
	Get(ctx context.Context, id int64) (*beatmap.Beatmap, error)
}

// Recalculator listens for trigger messages and recomputes every eligible
// score's rating and every player's aggregate stats across all mode
// variants.
//
// A trigger arriving while a pass is running is dropped with a warning:
// both passes would write the same rows, and a re-trigger after completion
// recomputes everything idempotently anyway.
type Recalculator struct {
	store    ScoreStore
	ranking  RankingStore
	bus      MessageBus
	beatmaps BeatmapSource
	engine   engine.Engine

	applyPassedObjects bool
	modes              []int
	running            atomic.Bool

	logger logger.Logger
}

// RecalcOption applies a configuration option to the Recalculator.
type RecalcOption func(*Recalculator)

// WithPassedObjects makes the record stage forward the passed-object count
// derived from stored hit counts. Off by default.
func WithPassedObjects(enabled bool) RecalcOption {
	return func(r *Recalculator) {
		r.applyPassedObjects = enabled
	}
}

// WithModes overrides the mode variant list walked per pass.
func WithModes(modes []int) RecalcOption {
	return func(r *Recalculator) {
		if len(modes) > 0 {
			r.modes = modes
		}
	}
}

// WithRecalcLogger sets a custom logger for the recalculator.
func WithRecalcLogger(l logger.Logger) RecalcOption {
	return func(r *Recalculator) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecalculator creates a recalculation engine over the given
// collaborators.
func NewRecalculator(store ScoreStore, ranking RankingStore, mbus MessageBus, beatmaps BeatmapSource, eng engine.Engine, opts ...RecalcOption) *Recalculator {
	r := &Recalculator{
		store:    store,
		ranking:  ranking,
		bus:      mbus,
		beatmaps: beatmaps,
		engine:   eng,
		modes:    model.RecalcModes,
		logger:   logger.Get().Named("recalc"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Listen subscribes to the trigger channel and serves triggers until ctx is
// canceled. Malformed payloads are logged and discarded.
func (r *Recalculator) Listen(ctx context.Context) error {
	triggers, err := r.bus.Subscribe(ctx, bus.TriggerChannel)
	if err != nil {
		return err
	}
	r.logger.Info(ctx, "listening for recalculation triggers", logger.String("channel", bus.TriggerChannel))

	for payload := range triggers {
		userID, err := parseTrigger(payload)
		if err != nil {
			r.logger.Warn(ctx, "discarding malformed trigger",
				logger.String("payload", payload),
				logger.Error(err),
			)
			continue
		}

		if !r.running.CompareAndSwap(false, true) {
			metrics.RecordRecalcTriggerDropped()
			r.logger.Warn(ctx, "recalculation already running, dropping trigger",
				logger.Int64("user_id", userID),
			)
			continue
		}

		go func() {
			defer r.running.Store(false)
			r.run(ctx, userID)
		}()
	}

	return nil
}

// parseTrigger extracts the triggering user id from a raw payload.
func parseTrigger(payload string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
}

// run executes a full pass over every mode variant and publishes the
// completion event. The pass completes even if every row failed.
func (r *Recalculator) run(ctx context.Context, userID int64) {
	r.logger.Info(ctx, "starting full recalculation", logger.Int64("triggered_by", userID))
	start := time.Now()

	for _, mode := range r.modes {
		if err := r.recalculateMode(ctx, mode); err != nil {
			r.logger.Error(ctx, "mode recalculation failed",
				logger.Int("mode", mode),
				logger.Error(err),
			)
		}
	}

	metrics.RecordRecalcPass()
	metrics.RecordRecalcPassDuration(time.Since(start).Seconds())
	r.logger.Info(ctx, "completed full recalculation",
		logger.Int64("triggered_by", userID),
		logger.Float64("seconds", time.Since(start).Seconds()),
	)

	if err := r.bus.Publish(ctx, bus.CompletionChannel, strconv.FormatInt(userID, 10)); err != nil {
		r.logger.Error(ctx, "failed to publish completion event", logger.Error(err))
	}
}

// recalculateMode runs the record stage, then the player stage. The player
// stage reads the ratings the record stage persisted, so the order is
// load-bearing.
func (r *Recalculator) recalculateMode(ctx context.Context, mode int) error {
	if err := r.recalculateScores(ctx, mode); err != nil {
		return err
	}
	return r.recalculateUsers(ctx, mode)
}

// recalculateScores streams every eligible score for mode and overwrites
// its rating. Per-row failures are logged and skipped.
func (r *Recalculator) recalculateScores(ctx context.Context, mode int) error {
	modeLabel := strconv.Itoa(mode)
	updated := 0

	err := r.store.EachEligibleScore(ctx, mode, func(sc model.Score) {
		if err := r.updateScorePP(ctx, sc); err != nil {
			metrics.RecordRecalcScoreFailed(modeLabel)
			r.logger.Warn(ctx, "failed to update score",
				logger.Uint64("score_id", sc.ID),
				logger.Error(err),
			)
			return
		}
		metrics.RecordRecalcScoreUpdated(modeLabel)
		updated++
	})
	if err != nil {
		return err
	}

	r.logger.Info(ctx, "record stage finished",
		logger.Int("mode", mode),
		logger.Int("updated", updated),
	)
	return nil
}

// updateScorePP recomputes one score's rating from its persisted attributes
// and writes it back. Non-finite engine output is clamped to zero.
func (r *Recalculator) updateScorePP(ctx context.Context, sc model.Score) error {
	bm, err := r.beatmaps.Get(ctx, sc.MapID)
	if err != nil {
		return err
	}

	spec := engine.Spec{
		Mode:      model.BaseMode(sc.Mode),
		NewFormat: sc.NewFormat,
		Combo:     &sc.MaxCombo,
		Misses:    &sc.Misses,
		N300:      &sc.N300,
		N100:      &sc.N100,
		N50:       &sc.N50,
		Geki:      &sc.Geki,
		Katu:      &sc.Katu,
	}
	if !sc.NewFormat {
		spec.LegacyTotalScore = &sc.TotalScore
	}
	if r.applyPassedObjects {
		passed := sc.N300 + sc.N100 + sc.N50 + sc.Geki + sc.Katu + sc.Misses
		spec.PassedObjects = &passed
	}
	spec.Mods = resolveScoreMods(sc)

	attrs, err := r.engine.Calculate(ctx, bm, spec)
	if err != nil {
		return err
	}

	pp := attrs.PP
	if math.IsNaN(pp) || math.IsInf(pp, 0) {
		pp = 0
	}

	if err := r.store.UpdateScorePP(ctx, sc.ID, pp); err != nil {
		return err
	}

	r.logger.Debug(ctx, "score updated",
		logger.Uint64("score_id", sc.ID),
		logger.Float64("old_pp", sc.PP),
		logger.Float64("new_pp", pp),
	)
	return nil
}

// resolveScoreMods normalizes a persisted score's mods. For the two relax
// variants the relax bit is masked out before resolution.
func resolveScoreMods(sc model.Score) mods.GameMods {
	bits := sc.Mods
	if sc.Mode == modeRelaxVariantA || sc.Mode == modeRelaxVariantB {
		bits &^= mods.Relax
	}

	base := model.BaseMode(sc.Mode)
	if sc.NewFormat && sc.ModsJSON != "" {
		return mods.Parse(sc.ModsJSON, base)
	}
	return mods.Parse(strconv.Itoa(bits), base)
}

// recalculateUsers streams every player and refreshes their aggregate stats
// and leaderboard entries for mode. Per-player failures are logged and
// skipped.
func (r *Recalculator) recalculateUsers(ctx context.Context, mode int) error {
	modeLabel := strconv.Itoa(mode)
	updated := 0

	err := r.store.EachUserID(ctx, func(userID int64) {
		if err := r.updateUserStats(ctx, userID, mode); err != nil {
			metrics.RecordRecalcUserFailed(modeLabel)
			r.logger.Warn(ctx, "failed to update user stats",
				logger.Int64("user_id", userID),
				logger.Int("mode", mode),
				logger.Error(err),
			)
			return
		}
		metrics.RecordRecalcUserUpdated(modeLabel)
		updated++
	})
	if err != nil {
		return err
	}

	r.logger.Info(ctx, "player stage finished",
		logger.Int("mode", mode),
		logger.Int("updated", updated),
	)
	return nil
}

// updateUserStats aggregates a player's best records, persists the result,
// and refreshes leaderboard entries for unrestricted players.
func (r *Recalculator) updateUserStats(ctx context.Context, userID int64, mode int) error {
	best, err := r.store.BestScores(ctx, userID, mode)
	if err != nil {
		return err
	}
	if len(best) == 0 {
		return nil
	}

	pp, acc := scoring.Aggregate(best)

	if err := r.store.UpdateUserStats(ctx, userID, mode, pp, acc); err != nil {
		return err
	}

	info, err := r.store.UserInfo(ctx, userID)
	if err != nil {
		return err
	}
	if info.Privs&model.PrivUnrestricted == 0 {
		// Restricted players keep their stats but stay off the boards.
		return nil
	}

	return r.ranking.Update(ctx, mode, userID, info.Country, int(pp))
}
