package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/r1ctl/internal/apierr"
	"github.com/muurk/r1ctl/internal/wire"
)

func testProfile(id, title string) wire.Profile {
	return wire.Profile{
		ID:              id,
		Title:           title,
		Author:          "test",
		TargetWeight:    36,
		TankTemperature: 92,
		Steps: []wire.ProfileStep{
			{Name: "preinfusion", Pump: "pressure", Pressure: 2.5, Seconds: 10},
			{Name: "pour", Pump: "pressure", Pressure: 9, Seconds: 25},
		},
	}
}

func TestCacheStoreAndLoad(t *testing.T) {
	cache := &Cache{Dir: t.TempDir()}

	want := testProfile("lever-9bar", "Lever 9 bar")
	if err := cache.Store(want); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := cache.Load("lever-9bar")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Title != want.Title {
		t.Errorf("Title = %q, want %q", got.Title, want.Title)
	}
	if len(got.Steps) != 2 {
		t.Errorf("Steps len = %d, want 2", len(got.Steps))
	}
	if got.TargetWeight != 36.0 {
		t.Errorf("TargetWeight = %v, want 36", got.TargetWeight)
	}
}

func TestCacheLoadMissing(t *testing.T) {
	cache := &Cache{Dir: t.TempDir()}

	_, err := cache.Load("ghost")
	if err == nil {
		t.Fatal("Load(ghost) succeeded")
	}
	if apierr.CategoryOf(err) != apierr.CategoryProfile {
		t.Errorf("category = %v, want profile", apierr.CategoryOf(err))
	}
}

func TestCacheListSortsAndSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	cache := &Cache{Dir: dir}

	if err := cache.Store(testProfile("b", "Turbo")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := cache.Store(testProfile("a", "Classic")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// An invalid document and a stray file must not break the listing.
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}

	profiles, err := cache.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("List() len = %d, want 2", len(profiles))
	}
	if profiles[0].Title != "Classic" || profiles[1].Title != "Turbo" {
		t.Errorf("List() order = %q, %q, want Classic, Turbo", profiles[0].Title, profiles[1].Title)
	}
}

func TestCacheListMissingDir(t *testing.T) {
	cache := &Cache{Dir: filepath.Join(t.TempDir(), "nope")}

	profiles, err := cache.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if profiles != nil {
		t.Errorf("List() = %v, want nil", profiles)
	}
}

func TestCacheStoreRejectsMissingID(t *testing.T) {
	cache := &Cache{Dir: t.TempDir()}

	if err := cache.Store(wire.Profile{Title: "No ID"}); err == nil {
		t.Error("Store() accepted a profile without an id")
	}
}

func TestCacheDelete(t *testing.T) {
	cache := &Cache{Dir: t.TempDir()}

	if err := cache.Store(testProfile("gone", "Soon Gone")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if err := cache.Delete("gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := cache.Load("gone"); err == nil {
		t.Error("Load() succeeded after Delete()")
	}

	// Deleting again is not an error.
	if err := cache.Delete("gone"); err != nil {
		t.Errorf("Delete() of missing profile error = %v", err)
	}
}
