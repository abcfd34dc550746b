package service

import (
	"errors"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/generation-workbench/internal/domain/model"
	"github.com/bigkaa/goartstore/generation-workbench/internal/progress"
)

func newTestRegistry(t *testing.T, maxSize int, ttl time.Duration) (*Registry, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	r := NewRegistry(maxSize, ttl, ControllerDeps{
		Backend:    backend,
		Members:    NewMemberCache(4, time.Minute),
		Translator: testBundle(t),
		Progress:   progress.DefaultConfig(),
		Logger:     testLogger(),
	}, testLogger())
	t.Cleanup(r.Close)
	return r, backend
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	r, _ := newTestRegistry(t, 4, time.Minute)

	ctrl := r.Create("ru")
	if ctrl.Lang() != "ru" {
		t.Errorf("язык = %q", ctrl.Lang())
	}
	got, err := r.Get(ctrl.ID())
	if err != nil || got != ctrl {
		t.Fatalf("Get: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d", r.Len())
	}

	if err := r.Delete(ctrl.ID()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	select {
	case <-ctrl.Done():
	default:
		t.Error("удалённый прогон должен быть закрыт")
	}
	if _, err := r.Get(ctrl.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ожидалась ErrSessionNotFound, получено %v", err)
	}
	if err := r.Delete(ctrl.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("повторный Delete: %v", err)
	}
}

func TestRegistry_EvictsOldest(t *testing.T) {
	r, _ := newTestRegistry(t, 1, time.Minute)

	first := r.Create("en")
	second := r.Create("en")

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("вытесненный прогон должен быть закрыт")
	}
	if _, err := r.Get(first.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("ожидалась ErrSessionNotFound, получено %v", err)
	}
	if _, err := r.Get(second.ID()); err != nil {
		t.Errorf("второй прогон: %v", err)
	}
}

func TestRegistry_Expires(t *testing.T) {
	r, _ := newTestRegistry(t, 4, 30*time.Millisecond)

	ctrl := r.Create("en")
	time.Sleep(60 * time.Millisecond)

	if _, err := r.Get(ctrl.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("истёкший прогон: ожидалась ErrSessionNotFound, получено %v", err)
	}
}

func TestRegistry_CreateLoadsGroups(t *testing.T) {
	r, backend := newTestRegistry(t, 4, time.Minute)
	backend.groups = []model.RecipientGroup{{ID: "g1", Title: "Class A"}}

	ctrl := r.Create("en")
	ctrl.Wait()

	if s := ctrl.Snapshot(); len(s.Recipients.Groups) != 1 {
		t.Errorf("группы = %+v", s.Recipients.Groups)
	}
}
