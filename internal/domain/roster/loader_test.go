package roster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/cryptoheroes/internal/adapters/kv"
	"github.com/okian/cryptoheroes/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	calls   atomic.Int32
	mu      sync.Mutex
	records []model.MarketRecord
	err     error
	gate    chan struct{}
}

func (f *fakeFetcher) FetchMarkets(_ context.Context) ([]model.MarketRecord, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, f.err
}

func (f *fakeFetcher) set(records []model.MarketRecord, err error) {
	f.mu.Lock()
	f.records, f.err = records, err
	f.mu.Unlock()
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (brokenStore) Delete(context.Context, string) error { return errors.New("store down") }

func ids(chars []model.Character) []string {
	out := make([]string, 0, len(chars))
	for _, c := range chars {
		out = append(out, c.ID)
	}
	return out
}

var liveRecords = []model.MarketRecord{
	{ID: "bitcoin", Symbol: "btc", Name: "Bitcoin", MarketCap: 1.2e12, TotalVolume: 3e10, MarketCapRank: 1},
	{ID: "dogecoin", Symbol: "doge", Name: "Dogecoin", MarketCap: 1.9e10, TotalVolume: 1e9, MarketCapRank: 9, Categories: []string{"Meme"}},
	{ID: "dogecoin", Symbol: "doge", Name: "Duplicate", MarketCapRank: 9},
	{ID: "", Symbol: "none"},
}

func TestLoaderCaching(t *testing.T) {
	ctx := context.Background()

	Convey("Given an empty cache and a working provider", t, func() {
		clk := &clock{t: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)}
		store := kv.NewMemoryStore(kv.WithClock(clk.Now))
		fetcher := &fakeFetcher{records: liveRecords}
		loader := NewLoader(store, fetcher, WithClock(clk.Now))

		Convey("When the roster is requested for the first time", func() {
			r, err := loader.Characters(ctx)

			Convey("Then it should be fetched live and synthesized", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginLive)
				So(r.FetchedAt.Equal(clk.Now()), ShouldBeTrue)
				So(len(r.Characters), ShouldEqual, 2)
				So(r.Characters[0].Symbol, ShouldEqual, "BTC")
				So(r.Characters[1].Stats.Charisma, ShouldEqual, 98)
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})

			Convey("And requested again within the staleness window", func() {
				clk.Advance(5*time.Hour + 59*time.Minute)
				again, err := loader.Characters(ctx)

				Convey("Then the cached snapshot should be served", func() {
					So(err, ShouldBeNil)
					So(again.Origin, ShouldEqual, OriginCache)
					So(ids(again.Characters), ShouldResemble, ids(r.Characters))
					So(again.Characters[0].Stats, ShouldResemble, r.Characters[0].Stats)
					So(again.FetchedAt.Equal(r.FetchedAt), ShouldBeTrue)
					So(fetcher.calls.Load(), ShouldEqual, 1)
				})
			})

			Convey("And requested after the staleness window", func() {
				clk.Advance(6 * time.Hour)
				again, err := loader.Characters(ctx)

				Convey("Then the roster should be refetched", func() {
					So(err, ShouldBeNil)
					So(again.Origin, ShouldEqual, OriginLive)
					So(fetcher.calls.Load(), ShouldEqual, 2)
				})
			})

			Convey("And the provider fails after the window", func() {
				clk.Advance(7 * time.Hour)
				fetcher.set(nil, errors.New("upstream down"))
				again, err := loader.Characters(ctx)

				Convey("Then the stale snapshot should be served", func() {
					So(err, ShouldBeNil)
					So(again.Origin, ShouldEqual, OriginStale)
					So(ids(again.Characters), ShouldResemble, ids(r.Characters))
				})
			})

			Convey("And the provider returns nothing after the window", func() {
				clk.Advance(7 * time.Hour)
				fetcher.set([]model.MarketRecord{}, nil)
				again, _ := loader.Characters(ctx)

				Convey("Then the stale snapshot should still be preferred", func() {
					So(again.Origin, ShouldEqual, OriginStale)
				})
			})

			Convey("And the snapshot outlives its retention", func() {
				clk.Advance(DefaultRetention)
				fetcher.set(nil, errors.New("upstream down"))
				again, _ := loader.Characters(ctx)

				Convey("Then fixtures should be served", func() {
					So(again.Origin, ShouldEqual, OriginFixtures)
				})
			})
		})
	})

	Convey("Given an empty cache and a failing provider", t, func() {
		fetcher := &fakeFetcher{err: errors.New("boom")}
		loader := NewLoader(kv.NewMemoryStore(), fetcher)

		Convey("When the roster is requested", func() {
			r, err := loader.Characters(ctx)

			Convey("Then the static fixtures should be served", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginFixtures)
				So(len(r.Characters), ShouldEqual, 10)
			})
		})
	})

	Convey("Given a broken store", t, func() {
		fetcher := &fakeFetcher{records: liveRecords}
		loader := NewLoader(brokenStore{}, fetcher)

		Convey("When the roster is requested", func() {
			r, err := loader.Characters(ctx)

			Convey("Then store errors should not be fatal", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginLive)
			})
		})
	})

	Convey("Given a corrupt snapshot in the store", t, func() {
		store := kv.NewMemoryStore()
		So(store.Set(ctx, DefaultCacheKey, []byte{0xc1, 0x00}, 0), ShouldBeNil)
		fetcher := &fakeFetcher{records: liveRecords}
		loader := NewLoader(store, fetcher)

		Convey("When the roster is requested", func() {
			r, _ := loader.Characters(ctx)

			Convey("Then it should be treated as a miss", func() {
				So(r.Origin, ShouldEqual, OriginLive)
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given no provider at all", t, func() {
		loader := NewLoader(kv.NewMemoryStore(), nil)

		Convey("Then fixtures should be served and a forced refresh should fail", func() {
			r, err := loader.Characters(ctx)
			So(err, ShouldBeNil)
			So(r.Origin, ShouldEqual, OriginFixtures)

			r, err = loader.Refresh(ctx)
			So(errors.Is(err, ErrNoFetcher), ShouldBeTrue)
			So(r.Origin, ShouldEqual, OriginFixtures)
		})
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewLoader(kv.NewMemoryStore(), nil).Characters(cctx)

		Convey("Then the context error should be returned", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestLoaderSingleFlight(t *testing.T) {
	Convey("Given many concurrent callers and a slow provider", t, func() {
		fetcher := &fakeFetcher{records: liveRecords, gate: make(chan struct{})}
		loader := NewLoader(kv.NewMemoryStore(), fetcher)

		Convey("When they all request the roster at once", func() {
			var wg sync.WaitGroup
			origins := make([]Origin, 16)
			for i := range origins {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					r, _ := loader.Characters(context.Background())
					origins[i] = r.Origin
				}(i)
			}
			time.Sleep(100 * time.Millisecond)
			close(fetcher.gate)
			wg.Wait()

			Convey("Then the provider should be called once", func() {
				So(fetcher.calls.Load(), ShouldEqual, 1)
				for _, o := range origins {
					So(o, ShouldEqual, OriginLive)
				}
			})
		})
	})
}

func TestLoaderRefreshAndFind(t *testing.T) {
	ctx := context.Background()

	Convey("Given a loader with a cached roster", t, func() {
		fetcher := &fakeFetcher{records: liveRecords}
		loader := NewLoader(kv.NewMemoryStore(), fetcher)
		_, _ = loader.Characters(ctx)

		Convey("When forcing a refresh", func() {
			r, err := loader.Refresh(ctx)

			Convey("Then the provider should be called even though the cache is fresh", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginLive)
				So(fetcher.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When a forced refresh fails", func() {
			fetcher.set(nil, errors.New("boom"))
			r, err := loader.Refresh(ctx)

			Convey("Then the error and the cached roster should be returned", func() {
				So(errors.Is(err, ErrRefreshFailed), ShouldBeTrue)
				So(r.Origin, ShouldEqual, OriginStale)
				So(len(r.Characters), ShouldEqual, 2)
			})
		})

		Convey("When finding characters", func() {
			c, err := loader.Find(ctx, "dogecoin")
			_, missErr := loader.Find(ctx, "litecoin")

			Convey("Then known ids resolve and unknown ids fail", func() {
				So(err, ShouldBeNil)
				So(c.Name, ShouldEqual, "Dogecoin")
				So(errors.Is(missErr, ErrUnknownCharacter), ShouldBeTrue)
			})
		})
	})
}

func TestLoaderOptions(t *testing.T) {
	Convey("Given a retention shorter than the staleness window", t, func() {
		l := NewLoader(nil, nil, WithStaleAfter(time.Hour), WithRetention(time.Minute), WithCacheKey("k"))

		Convey("Then retention should be raised to the window", func() {
			So(l.StaleAfter(), ShouldEqual, time.Hour)
			So(l.retention, ShouldEqual, time.Hour)
			So(l.key, ShouldEqual, "k")
		})
	})
}

func TestLoaderRetryBackoff(t *testing.T) {
	ctx := context.Background()

	Convey("Given a failing provider and an empty cache", t, func() {
		clk := &clock{t: time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)}
		fetcher := &fakeFetcher{err: errors.New("upstream down")}
		loader := NewLoader(kv.NewMemoryStore(kv.WithClock(clk.Now)), fetcher,
			WithClock(clk.Now), WithRetryBackoff(time.Minute))

		r, err := loader.Characters(ctx)
		So(err, ShouldBeNil)
		So(r.Origin, ShouldEqual, OriginFixtures)
		So(fetcher.calls.Load(), ShouldEqual, 1)

		Convey("When asked again within the backoff", func() {
			clk.Advance(30 * time.Second)
			r, err := loader.Characters(ctx)

			Convey("Then fixtures are served without another fetch", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginFixtures)
				So(fetcher.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the backoff has passed and the provider recovered", func() {
			clk.Advance(2 * time.Minute)
			fetcher.set(liveRecords, nil)
			r, err := loader.Characters(ctx)

			Convey("Then the roster is fetched live", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginLive)
				So(fetcher.calls.Load(), ShouldEqual, 2)
			})
		})

		Convey("When a refresh is forced within the backoff", func() {
			fetcher.set(liveRecords, nil)
			r, err := loader.Refresh(ctx)

			Convey("Then the backoff is ignored", func() {
				So(err, ShouldBeNil)
				So(r.Origin, ShouldEqual, OriginLive)
				So(fetcher.calls.Load(), ShouldEqual, 2)
			})
		})
	})
}

func TestFixtures(t *testing.T) {
	Convey("Given the static fixtures", t, func() {
		f := Fixtures()

		Convey("Then there should be ten ranked characters with bounded stats", func() {
			So(len(f), ShouldEqual, 10)
			ids := map[string]bool{}
			for i, c := range f {
				So(c.Rank, ShouldEqual, i+1)
				So(ids[c.ID], ShouldBeFalse)
				ids[c.ID] = true
				for _, s := range []int{c.Stats.Strength, c.Stats.Speed, c.Stats.Intelligence, c.Stats.Charisma} {
					So(s, ShouldBeBetweenOrEqual, 0, 100)
				}
			}
			So(f[0].ID, ShouldEqual, "bitcoin")
			So(f[9].Symbol, ShouldEqual, "SHIB")
		})

		Convey("Then callers should get independent copies", func() {
			f[0].Name = "changed"
			So(Fixtures()[0].Name, ShouldEqual, "Bitcoin")
		})
	})
}
