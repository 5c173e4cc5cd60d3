package app_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/refx-online/omajinai/internal/adapters/engine"
	"github.com/refx-online/omajinai/internal/adapters/mq/bus"
	"github.com/refx-online/omajinai/internal/app"
	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/internal/domain/model"
	"github.com/refx-online/omajinai/internal/domain/mods"
	"github.com/refx-online/omajinai/pkg/logger"
	"github.com/refx-online/omajinai/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

const sampleChart = "osu file format v14\n\n[Metadata]\nTitle:test\n\n[HitObjects]\n256,192,1000,1,0\n"

const waitTimeout = 5 * time.Second

// fakeBus hands Listen a prepared trigger channel and records every publish.
type fakeBus struct {
	triggers  chan string
	published chan publication
}

type publication struct {
	channel string
	payload string
}

func newFakeBus() *fakeBus {
	return &fakeBus{
		triggers:  make(chan string, 8),
		published: make(chan publication, 8),
	}
}

func (b *fakeBus) Subscribe(_ context.Context, _ string) (<-chan string, error) {
	return b.triggers, nil
}

func (b *fakeBus) Publish(_ context.Context, channel, payload string) error {
	b.published <- publication{channel: channel, payload: payload}
	return nil
}

// fakeStore holds scores, users, and best records in memory and records all
// writes. The recalculation pass runs on its own goroutine, hence the mutex.
type fakeStore struct {
	mu sync.Mutex

	scores map[int][]model.Score
	users  []int64
	best   map[string][]model.BestScore
	info   map[int64]model.UserInfo

	scoreWrites map[uint64]float64
	statWrites  map[string][2]float64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		scores:      make(map[int][]model.Score),
		best:        make(map[string][]model.BestScore),
		info:        make(map[int64]model.UserInfo),
		scoreWrites: make(map[uint64]float64),
		statWrites:  make(map[string][2]float64),
	}
}

func statKey(userID int64, mode int) string {
	return fmt.Sprintf("%d/%d", userID, mode)
}

func (s *fakeStore) EachEligibleScore(_ context.Context, mode int, fn func(model.Score)) error {
	s.mu.Lock()
	rows := append([]model.Score(nil), s.scores[mode]...)
	s.mu.Unlock()
	for _, sc := range rows {
		fn(sc)
	}
	return nil
}

func (s *fakeStore) EachUserID(_ context.Context, fn func(int64)) error {
	s.mu.Lock()
	ids := append([]int64(nil), s.users...)
	s.mu.Unlock()
	for _, id := range ids {
		fn(id)
	}
	return nil
}

func (s *fakeStore) BestScores(_ context.Context, userID int64, mode int) ([]model.BestScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best[statKey(userID, mode)], nil
}

func (s *fakeStore) UpdateScorePP(_ context.Context, id uint64, pp float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scoreWrites[id] = pp
	return nil
}

func (s *fakeStore) UpdateUserStats(_ context.Context, userID int64, mode int, pp, acc float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statWrites[statKey(userID, mode)] = [2]float64{pp, acc}
	return nil
}

func (s *fakeStore) UserInfo(_ context.Context, userID int64) (model.UserInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info[userID], nil
}

// fakeRanking records leaderboard writes.
type fakeRanking struct {
	mu      sync.Mutex
	updates []rankingUpdate
}

type rankingUpdate struct {
	mode    int
	userID  int64
	country string
	rating  int
}

func (r *fakeRanking) Update(_ context.Context, mode int, userID int64, country string, rating int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, rankingUpdate{mode: mode, userID: userID, country: country, rating: rating})
	return nil
}

func (r *fakeRanking) all() []rankingUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]rankingUpdate(nil), r.updates...)
}

// fakeSource serves charts from memory; unknown ids fail.
type fakeSource struct {
	mu     sync.Mutex
	charts map[int64]*beatmap.Beatmap
}

func newFakeSource(ids ...int64) *fakeSource {
	s := &fakeSource{charts: make(map[int64]*beatmap.Beatmap)}
	for _, id := range ids {
		bm, err := beatmap.FromBytes(id, []byte(sampleChart))
		if err != nil {
			panic(err)
		}
		s.charts[id] = bm
	}
	return s
}

func (s *fakeSource) Get(_ context.Context, id int64) (*beatmap.Beatmap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bm, ok := s.charts[id]
	if !ok {
		return nil, fmt.Errorf("beatmap not found: %d", id)
	}
	return bm.Clone(), nil
}

// fakeEngine returns a fixed rating and records specs. Charts listed in
// nonFinite yield NaN instead.
type fakeEngine struct {
	mu        sync.Mutex
	pp        float64
	nonFinite map[int64]bool
	specs     []engine.Spec
}

func (e *fakeEngine) Calculate(_ context.Context, bm *beatmap.Beatmap, spec engine.Spec) (engine.Attributes, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.specs = append(e.specs, spec)
	if e.nonFinite[bm.ID] {
		return engine.Attributes{PP: math.NaN()}, nil
	}
	return engine.Attributes{PP: e.pp, Stars: 5, MaxCombo: 1000}, nil
}

func (e *fakeEngine) allSpecs() []engine.Spec {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Spec(nil), e.specs...)
}

// awaitCompletion drains publications until the completion channel delivers,
// failing the test on timeout.
func awaitCompletion(bus *fakeBus) (publication, bool) {
	select {
	case pub := <-bus.published:
		return pub, true
	case <-time.After(waitTimeout):
		return publication{}, false
	}
}

func TestRecalculatorFullPass(t *testing.T) {
	Convey("Given a recalculator over populated fakes", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := newFakeStore()
		store.scores[0] = []model.Score{
			{ID: 1, Mode: 0, Mods: mods.Hidden | mods.Relax, MapID: 1, UserID: 100, MaxCombo: 500, N300: 100, Misses: 2, TotalScore: 900000},
		}
		store.scores[12] = []model.Score{
			{ID: 2, Mode: 12, Mods: mods.Hidden | mods.Relax, MapID: 1, UserID: 100, MaxCombo: 400, N300: 90, Misses: 0, TotalScore: 800000},
		}
		store.users = []int64{100, 200}
		store.best[statKey(100, 0)] = []model.BestScore{{PP: 400, Acc: 99}}
		store.best[statKey(100, 12)] = []model.BestScore{{PP: 300, Acc: 97}}
		store.best[statKey(200, 0)] = []model.BestScore{{PP: 150, Acc: 92}}
		store.info[100] = model.UserInfo{Country: "us", Privs: model.PrivUnrestricted}
		store.info[200] = model.UserInfo{Country: "de", Privs: 0}

		ranking := &fakeRanking{}
		mbus := newFakeBus()
		source := newFakeSource(1)
		eng := &fakeEngine{pp: 123.4}

		recalc := app.NewRecalculator(store, ranking, mbus, source, eng,
			app.WithModes([]int{0, 12}),
		)

		listenDone := make(chan error, 1)
		go func() { listenDone <- recalc.Listen(ctx) }()

		Convey("When a trigger for user 42 arrives", func() {
			mbus.triggers <- "42"

			pub, ok := awaitCompletion(mbus)
			So(ok, ShouldBeTrue)

			Convey("Then the completion payload should echo the trigger exactly once", func() {
				So(pub.channel, ShouldEqual, bus.CompletionChannel)
				So(pub.payload, ShouldEqual, "42")
				So(len(mbus.published), ShouldEqual, 0)
			})

			Convey("And every eligible score should carry the new rating", func() {
				So(store.scoreWrites, ShouldHaveLength, 2)
				So(store.scoreWrites[1], ShouldEqual, 123.4)
				So(store.scoreWrites[2], ShouldEqual, 123.4)
			})

			Convey("And the relax bit should be masked for the compound variant only", func() {
				specs := eng.allSpecs()
				So(specs, ShouldHaveLength, 2)

				// Both variants resolve to base mode 0, so the rows are told
				// apart by their legacy total score.
				for _, spec := range specs {
					So(spec.Mode, ShouldEqual, 0)
					So(spec.Mods, ShouldNotBeNil)
					bits := int(spec.Mods.(mods.Legacy))
					So(bits&mods.Hidden, ShouldEqual, mods.Hidden)
					if *spec.LegacyTotalScore == 900000 {
						So(bits&mods.Relax, ShouldEqual, mods.Relax)
					} else {
						So(bits&mods.Relax, ShouldEqual, 0)
					}
				}
			})

			Convey("And player stats should be refreshed per mode", func() {
				So(store.statWrites, ShouldContainKey, statKey(100, 0))
				So(store.statWrites, ShouldContainKey, statKey(100, 12))
				So(store.statWrites, ShouldContainKey, statKey(200, 0))
			})

			Convey("And restricted players should never reach the boards", func() {
				for _, up := range ranking.all() {
					So(up.userID, ShouldEqual, 100)
				}
				So(ranking.all(), ShouldHaveLength, 2)
				So(ranking.all()[0].country, ShouldEqual, "us")
			})

			Convey("And players without best records should be skipped", func() {
				_, ok := store.statWrites[statKey(200, 12)]
				So(ok, ShouldBeFalse)
			})

			close(mbus.triggers)
			So(<-listenDone, ShouldBeNil)
		})
	})
}

func TestRecalculatorResilience(t *testing.T) {
	Convey("Given a recalculator with a partially broken world", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := newFakeStore()
		store.scores[0] = []model.Score{
			{ID: 1, Mode: 0, MapID: 999, UserID: 100, TotalScore: 1}, // chart missing
			{ID: 2, Mode: 0, MapID: 1, UserID: 100, TotalScore: 2},
			{ID: 3, Mode: 0, MapID: 7, UserID: 100, TotalScore: 3}, // engine yields NaN
		}
		store.users = []int64{100}
		store.best[statKey(100, 0)] = []model.BestScore{{PP: 100, Acc: 95}}
		store.info[100] = model.UserInfo{Country: "jp", Privs: model.PrivUnrestricted}

		ranking := &fakeRanking{}
		mbus := newFakeBus()
		source := newFakeSource(1, 7)
		eng := &fakeEngine{pp: 50, nonFinite: map[int64]bool{7: true}}

		recalc := app.NewRecalculator(store, ranking, mbus, source, eng,
			app.WithModes([]int{0}),
		)

		listenDone := make(chan error, 1)
		go func() { listenDone <- recalc.Listen(ctx) }()

		Convey("When a pass runs over the broken rows", func() {
			mbus.triggers <- "7"

			pub, ok := awaitCompletion(mbus)
			So(ok, ShouldBeTrue)

			Convey("Then the pass should complete despite the failures", func() {
				So(pub.payload, ShouldEqual, "7")
			})

			Convey("And the missing chart row should be skipped, not fatal", func() {
				_, wrote := store.scoreWrites[1]
				So(wrote, ShouldBeFalse)
				So(store.scoreWrites[2], ShouldEqual, 50)
			})

			Convey("And non-finite engine output should clamp to zero", func() {
				So(store.scoreWrites[3], ShouldEqual, 0)
			})

			Convey("And the player stage should still run", func() {
				So(store.statWrites, ShouldContainKey, statKey(100, 0))
				So(ranking.all(), ShouldHaveLength, 1)
			})

			close(mbus.triggers)
			So(<-listenDone, ShouldBeNil)
		})
	})
}

func TestRecalculatorTriggerHandling(t *testing.T) {
	Convey("Given a listening recalculator", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := newFakeStore()
		ranking := &fakeRanking{}
		mbus := newFakeBus()
		source := newFakeSource()
		eng := &fakeEngine{pp: 10}

		recalc := app.NewRecalculator(store, ranking, mbus, source, eng,
			app.WithModes([]int{0}),
		)

		listenDone := make(chan error, 1)
		go func() { listenDone <- recalc.Listen(ctx) }()

		Convey("When a malformed trigger precedes a valid one", func() {
			mbus.triggers <- "not-a-number"
			mbus.triggers <- "7"

			pub, ok := awaitCompletion(mbus)

			Convey("Then only the valid trigger should complete", func() {
				So(ok, ShouldBeTrue)
				So(pub.payload, ShouldEqual, "7")
				So(len(mbus.published), ShouldEqual, 0)
			})

			close(mbus.triggers)
			So(<-listenDone, ShouldBeNil)
		})
	})
}

// gateStore blocks the record stage until released so a test can hold a pass
// open deliberately.
type gateStore struct {
	*fakeStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gateStore) EachEligibleScore(ctx context.Context, mode int, fn func(model.Score)) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.fakeStore.EachEligibleScore(ctx, mode, fn)
}

// droppedTriggers reads the dropped trigger counter off the shared registry.
func droppedTriggers() float64 {
	fams, err := metrics.GetRegistry().Gather()
	if err != nil {
		return 0
	}
	for _, fam := range fams {
		if fam.GetName() == "omajinai_performance_recalc_triggers_dropped_total" {
			var total float64
			for _, m := range fam.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			return total
		}
	}
	return 0
}

func TestRecalculatorConcurrentTrigger(t *testing.T) {
	Convey("Given a recalculator with a pass held open", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		store := &gateStore{
			fakeStore: newFakeStore(),
			entered:   make(chan struct{}),
			release:   make(chan struct{}),
		}
		ranking := &fakeRanking{}
		mbus := newFakeBus()
		source := newFakeSource()
		eng := &fakeEngine{pp: 10}

		recalc := app.NewRecalculator(store, ranking, mbus, source, eng,
			app.WithModes([]int{0}),
		)

		listenDone := make(chan error, 1)
		go func() { listenDone <- recalc.Listen(ctx) }()

		Convey("When a second trigger arrives mid-pass", func() {
			droppedBefore := droppedTriggers()

			mbus.triggers <- "1"
			<-store.entered

			mbus.triggers <- "2"

			deadline := time.Now().Add(waitTimeout)
			for droppedTriggers() < droppedBefore+1 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			dropped := droppedTriggers()

			close(store.release)
			pub, ok := awaitCompletion(mbus)

			Convey("Then the second trigger should be dropped", func() {
				So(dropped, ShouldEqual, droppedBefore+1)
			})

			Convey("And exactly one completion should be published", func() {
				So(ok, ShouldBeTrue)
				So(pub.payload, ShouldEqual, "1")
				So(len(mbus.published), ShouldEqual, 0)
			})

			close(mbus.triggers)
			So(<-listenDone, ShouldBeNil)
		})
	})
}
