package beatmaps_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/refx-online/omajinai/internal/adapters/beatmaps"
	"github.com/refx-online/omajinai/internal/domain/beatmap"
	"github.com/refx-online/omajinai/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

const sampleChart = "osu file format v14\n\n[Metadata]\nTitle:test\n\n[HitObjects]\n256,192,1000,1,0\n"

func writeChart(t *testing.T, dir string, id int64) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("%d.osu", id))
	if err := os.WriteFile(path, []byte(sampleChart), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServiceGet(t *testing.T) {
	Convey("Given a beatmap service over a local directory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		svc := beatmaps.New(dir)

		Convey("When the chart exists on disk", func() {
			path := writeChart(t, dir, 1)
			bm, err := svc.Get(ctx, 1)

			Convey("Then it should parse and return the chart", func() {
				So(err, ShouldBeNil)
				So(bm.ID, ShouldEqual, 1)
				So(bm.Title, ShouldEqual, "test")
			})

			Convey("And a second get should be served from memory", func() {
				So(err, ShouldBeNil)
				So(os.Remove(path), ShouldBeNil)

				again, err := svc.Get(ctx, 1)
				So(err, ShouldBeNil)
				So(*again, ShouldResemble, *bm)
			})
		})

		Convey("When the chart is absent and no remote source is configured", func() {
			_, err := svc.Get(ctx, 2)

			Convey("Then it should report not found", func() {
				So(err, ShouldWrap, beatmaps.ErrNotFound)
			})
		})

		Convey("When the bytes on disk are malformed", func() {
			path := filepath.Join(dir, "3.osu")
			So(os.WriteFile(path, []byte("garbage"), 0o644), ShouldBeNil)

			_, err := svc.Get(ctx, 3)

			Convey("Then it should report a parse failure", func() {
				So(err, ShouldWrap, beatmap.ErrMalformed)
			})
		})
	})
}

func TestServiceRemoteFetch(t *testing.T) {
	Convey("Given a beatmap service with a remote source", t, func() {
		ctx := context.Background()
		dir := t.TempDir()

		var requests int
		remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			switch r.URL.Path {
			case "/v1/get-osu/10":
				_, _ = w.Write([]byte(sampleChart))
			case "/v1/get-osu/404":
				w.WriteHeader(http.StatusNotFound)
			default:
				w.WriteHeader(http.StatusInternalServerError)
			}
		}))
		defer remote.Close()

		svc := beatmaps.New(dir, beatmaps.WithRemoteSource(remote.URL))

		Convey("When the remote source has the chart", func() {
			bm, err := svc.Get(ctx, 10)

			Convey("Then it should fetch and parse it", func() {
				So(err, ShouldBeNil)
				So(bm.Title, ShouldEqual, "test")
				So(requests, ShouldEqual, 1)
			})

			Convey("And the bytes should be persisted locally", func() {
				So(err, ShouldBeNil)
				data, readErr := os.ReadFile(filepath.Join(dir, "10.osu"))
				So(readErr, ShouldBeNil)
				So(string(data), ShouldEqual, sampleChart)
			})

			Convey("And a repeat get should not hit the remote again", func() {
				So(err, ShouldBeNil)
				_, err := svc.Get(ctx, 10)
				So(err, ShouldBeNil)
				So(requests, ShouldEqual, 1)
			})
		})

		Convey("When the remote source does not have the chart", func() {
			_, err := svc.Get(ctx, 404)

			Convey("Then it should report not found", func() {
				So(err, ShouldWrap, beatmaps.ErrNotFound)
			})
		})

		Convey("When the remote source misbehaves", func() {
			_, err := svc.Get(ctx, 500)

			Convey("Then it should report an external service failure", func() {
				So(err, ShouldWrap, beatmaps.ErrExternalService)
			})
		})
	})
}
