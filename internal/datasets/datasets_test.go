package datasets

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/cache/redisstore"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/events"
)

const csvBody = "lat,lng,label,type,species,year\n-1.3,36.8,Nairobi,Sample Site,A,2023"

type fakePublisher struct {
	mu  sync.Mutex
	evs []events.Event
	err error
}

func (f *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evs = append(f.evs, ev)
	return f.err
}

func (f *fakePublisher) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.evs))
	for i, ev := range f.evs {
		out[i] = ev.Op
	}
	return out
}

// ticking clock so that every save gets a distinct, increasing timestamp
func clock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newStore(t *testing.T, pub Publisher) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	return New(rc, Options{Prefix: "test", Publisher: pub, Now: clock()})
}

func TestSaveFetch_RoundTrip(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	h, err := s.Save(ctx, "user-1", "", "kenya.csv", []byte(csvBody))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if h.ID == "" || h.Name != "kenya" || h.FileName != "kenya.csv" || h.FileSize != len(csvBody) {
		t.Fatalf("handle=%+v", h)
	}

	data, got, err := s.Fetch(ctx, "user-1", h.ID)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != csvBody {
		t.Fatalf("data=%q", data)
	}
	if got.ID != h.ID || got.Name != h.Name || !got.CreatedAt.Equal(h.CreatedAt) {
		t.Fatalf("fetched handle=%+v want %+v", got, h)
	}
}

func TestSave_RejectsNonCSVAndAnonymous(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()
	if _, err := s.Save(ctx, "user-1", "x", "points.json", []byte("[]")); !errors.Is(err, ErrNotCSV) {
		t.Fatalf("err=%v want ErrNotCSV", err)
	}
	if _, err := s.Save(ctx, "", "x", "points.csv", []byte(csvBody)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v want ErrUnauthorized", err)
	}
	if _, err := s.Save(ctx, "user-1", "Upper", "POINTS.CSV", []byte(csvBody)); err != nil {
		t.Fatalf("upper-case extension rejected: %v", err)
	}
}

func TestListFor_NewestFirstAndOwnerScoped(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	a, _ := s.Save(ctx, "user-1", "first", "a.csv", []byte(csvBody))
	_, _ = s.Save(ctx, "user-2", "other", "b.csv", []byte(csvBody))
	c, _ := s.Save(ctx, "user-1", "second", "c.csv", []byte(csvBody))

	list, err := s.ListFor(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListFor: %v", err)
	}
	if len(list) != 2 || list[0].ID != c.ID || list[1].ID != a.ID {
		t.Fatalf("list=%+v", list)
	}

	empty, err := s.ListFor(ctx, "user-3")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("empty list=%#v err=%v", empty, err)
	}
	if _, err := s.ListFor(ctx, " "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err=%v want ErrUnauthorized", err)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	s := newStore(t, nil)
	ctx := context.Background()

	h, _ := s.Save(ctx, "user-1", "mine", "a.csv", []byte(csvBody))

	if _, _, err := s.Fetch(ctx, "user-2", h.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign fetch err=%v want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "user-2", h.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign delete err=%v want ErrNotFound", err)
	}
	if _, _, err := s.Fetch(ctx, "user-1", h.ID); err != nil {
		t.Fatalf("owner lost access after foreign delete: %v", err)
	}
	if _, _, err := s.Fetch(ctx, "", h.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous fetch err=%v want ErrUnauthorized", err)
	}
	if _, _, err := s.Fetch(ctx, "user-1", "does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing fetch err=%v want ErrNotFound", err)
	}
}

func TestDelete_RemovesAndPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s := newStore(t, pub)
	ctx := context.Background()

	h, _ := s.Save(ctx, "user-1", "gone", "a.csv", []byte(csvBody))
	if err := s.Delete(ctx, "user-1", h.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Fetch(ctx, "user-1", h.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("fetch after delete err=%v", err)
	}
	if list, _ := s.ListFor(ctx, "user-1"); len(list) != 0 {
		t.Fatalf("list after delete=%+v", list)
	}
	if err := s.Delete(ctx, "user-1", h.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v want ErrNotFound", err)
	}

	ops := pub.ops()
	if len(ops) != 2 || ops[0] != events.OpSaved || ops[1] != events.OpDeleted {
		t.Fatalf("published ops=%v", ops)
	}
	pub.mu.Lock()
	defer pub.mu.Unlock()
	for _, ev := range pub.evs {
		if ev.Handle != h.ID || ev.Owner != "user-1" {
			t.Fatalf("event=%+v", ev)
		}
		if err := ev.Validate(); err != nil {
			t.Fatalf("published invalid event: %v", err)
		}
	}
}

func TestPublishFailure_DoesNotFailMutation(t *testing.T) {
	s := newStore(t, &fakePublisher{err: errors.New("broker down")})
	if _, err := s.Save(context.Background(), "user-1", "x", "a.csv", []byte(csvBody)); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
