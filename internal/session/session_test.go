package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/core/model"
	"github.com/LouisNderitu20/GEOINSIGHTS-COMPLETE/internal/pipeline"
)

func TestCreateGetRemove(t *testing.T) {
	r := NewRegistry(4)
	s := r.Create()
	if s.ID == "" {
		t.Fatal("empty session id")
	}
	got, err := r.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get: %v", err)
	}
	if st := got.Snapshot(); len(st.Records) != 0 {
		t.Fatalf("fresh session has records: %+v", st)
	}
	if !r.Remove(s.ID) {
		t.Fatal("Remove reported missing")
	}
	if _, err := r.Get(s.ID); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("err=%v want ErrUnknownSession", err)
	}
	if r.Remove(s.ID) {
		t.Fatal("second Remove reported present")
	}
}

func TestRegistry_BoundedLRU(t *testing.T) {
	r := NewRegistry(2)
	a := r.Create()
	b := r.Create()
	if _, err := r.Get(a.ID); err != nil {
		t.Fatal(err)
	}
	c := r.Create()

	if r.Len() != 2 {
		t.Fatalf("len=%d want 2", r.Len())
	}
	if _, err := r.Get(b.ID); !errors.Is(err, ErrUnknownSession) {
		t.Fatal("least recently used session was kept")
	}
	for _, s := range []*Session{a, c} {
		if _, err := r.Get(s.ID); err != nil {
			t.Fatalf("session %s dropped: %v", s.ID, err)
		}
	}
}

func TestUpdate_KeepsStateOnError(t *testing.T) {
	s := NewRegistry(1).Create()
	recs := []model.Record{{Lat: 1, Lng: 2, Label: "a", Type: "t", Species: "s", Year: 2000}}
	if _, err := s.Update(func(pipeline.State) (pipeline.State, error) { return pipeline.Load(recs), nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	boom := errors.New("boom")
	st, err := s.Update(func(pipeline.State) (pipeline.State, error) { return pipeline.Empty(), boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if len(st.Records) != 1 || len(s.Snapshot().Records) != 1 {
		t.Fatal("failed update replaced the state")
	}
}

func TestUpdate_SerialisesWriters(t *testing.T) {
	s := NewRegistry(1).Create()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Update(func(st pipeline.State) (pipeline.State, error) {
				recs := append(append([]model.Record(nil), st.Records...), model.Record{Year: i})
				return pipeline.Load(recs), nil
			})
		}()
	}
	wg.Wait()
	if n := len(s.Snapshot().Records); n != 50 {
		t.Fatalf("records=%d want 50; lost updates", n)
	}
}
