package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/cryptoheroes/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording battle ids", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the battle is new", func() {
				seen := d.SeenAndRecord(ctx, "battle-1")

				Convey("Then it should return false and record it", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the battle was already seen", func() {
				d.SeenAndRecord(ctx, "battle-1")
				seen := d.SeenAndRecord(ctx, "battle-1")

				Convey("Then it should return true without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When unrecording battle ids", func() {
			d := dedupe.NewInMemoryDeduper()
			d.SeenAndRecord(ctx, "battle-1")
			d.SeenAndRecord(ctx, "battle-2")

			Convey("And the id exists", func() {
				d.Unrecord(ctx, "battle-1")

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 1)
					So(d.SeenAndRecord(ctx, "battle-1"), ShouldBeFalse)
				})
			})

			Convey("And the id is unknown", func() {
				d.Unrecord(ctx, "battle-404")

				Convey("Then the size should be unchanged", func() {
					So(d.Size(), ShouldEqual, 2)
				})
			})
		})

		Convey("When the deduper is bounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for i := 1; i <= 3; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("battle-%d", i))
			}

			Convey("And one more battle arrives", func() {
				d.SeenAndRecord(ctx, "battle-4")

				Convey("Then the oldest id should be evicted", func() {
					So(d.Size(), ShouldEqual, 3)
					So(d.SeenAndRecord(ctx, "battle-1"), ShouldBeFalse)
				})

				Convey("Then newer ids should still be remembered", func() {
					So(d.SeenAndRecord(ctx, "battle-3"), ShouldBeTrue)
					So(d.SeenAndRecord(ctx, "battle-4"), ShouldBeTrue)
				})
			})

			Convey("And an id is unrecorded before eviction", func() {
				d.Unrecord(ctx, "battle-1")
				d.SeenAndRecord(ctx, "battle-4")

				Convey("Then nothing else should be evicted", func() {
					So(d.Size(), ShouldEqual, 3)
					So(d.SeenAndRecord(ctx, "battle-2"), ShouldBeTrue)
				})
			})
		})

		Convey("When the deduper is unbounded", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			for i := 0; i < 1000; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("battle-%d", i))
			}

			Convey("Then every id should be kept", func() {
				So(d.Size(), ShouldEqual, 1000)
				So(d.SeenAndRecord(ctx, "battle-0"), ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	ctx := context.Background()

	Convey("Given a deduper shared by many goroutines", t, func() {
		d := dedupe.NewInMemoryDeduper()

		Convey("When the same battle id is submitted concurrently", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if !d.SeenAndRecord(ctx, "battle-race") {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one caller should see it as new", func() {
				So(fresh, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When distinct ids are recorded and unrecorded concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					id := fmt.Sprintf("battle-%d", i)
					d.SeenAndRecord(ctx, id)
					if i%2 == 0 {
						d.Unrecord(ctx, id)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then only the odd ids should remain", func() {
				So(d.Size(), ShouldEqual, 50)
			})
		})
	})
}
