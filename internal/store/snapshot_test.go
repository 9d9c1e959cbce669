package store

import (
	"errors"
	"testing"
	"time"
)

func sampleFlowers() []SnapshotFlower {
	planted := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	return []SnapshotFlower{
		{
			FlowerID: "f1", RelX: 0.25, MaxHeight: 300, CurrentHeight: 120, BloomProgress: 0,
			Species: "rose", Color: "#FF4500", SecondaryColor: "#FFD700",
			Stem: [4][2]float64{{0, 0}, {12, -0.33}, {-8, -0.66}, {4, -1}}, PlantedAt: planted,
		},
		{
			FlowerID: "f2", RelX: 0.75, MaxHeight: 220, CurrentHeight: 220, BloomProgress: 1,
			Species: "daisy", Color: "#00CED1", SecondaryColor: "#E0FFFF",
			PlantedAt: planted.Add(time.Minute),
		},
	}
}

func TestSnapshotRepository_SaveAndLatest(t *testing.T) {
	s := newTestStore(t)
	repo := s.Snapshots()

	if _, _, err := repo.Latest(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Latest on empty store: %v, want ErrNotFound", err)
	}

	snap := &Snapshot{ID: "snap-1", Width: 1280, Height: 720, Theme: "ocean", Species: "random"}
	if err := repo.Save(snap, sampleFlowers()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if snap.FlowerCount != 2 {
		t.Errorf("FlowerCount = %d, want 2", snap.FlowerCount)
	}
	if snap.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set by Save")
	}

	got, flowers, err := repo.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != "snap-1" || got.Width != 1280 || got.Theme != "ocean" {
		t.Errorf("snapshot = %+v", got)
	}
	if len(flowers) != 2 {
		t.Fatalf("flowers = %d, want 2", len(flowers))
	}
	want := sampleFlowers()
	for i := range want {
		if flowers[i].FlowerID != want[i].FlowerID || flowers[i].RelX != want[i].RelX ||
			flowers[i].Stem != want[i].Stem || flowers[i].Color != want[i].Color {
			t.Errorf("flower %d = %+v, want %+v", i, flowers[i], want[i])
		}
		if !flowers[i].PlantedAt.Equal(want[i].PlantedAt) {
			t.Errorf("flower %d planted at %v, want %v", i, flowers[i].PlantedAt, want[i].PlantedAt)
		}
	}
}

func TestSnapshotRepository_LatestPicksNewest(t *testing.T) {
	s := newTestStore(t)
	repo := s.Snapshots()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "middle"} {
		offsets := []time.Duration{0, 2 * time.Minute, time.Minute}
		snap := &Snapshot{ID: id, Width: 10, Height: 10, Theme: "sunset", Species: "random", CreatedAt: base.Add(offsets[i])}
		if err := repo.Save(snap, nil); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	got, flowers, err := repo.Latest()
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != "new" {
		t.Errorf("Latest = %s, want new", got.ID)
	}
	if len(flowers) != 0 {
		t.Errorf("empty snapshot returned %d flowers", len(flowers))
	}

	list, err := repo.List(2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != "new" || list[1].ID != "middle" {
		t.Errorf("List(2) order wrong: %v", ids(list))
	}

	all, err := repo.List(0)
	if err != nil || len(all) != 3 {
		t.Errorf("List(0) = %d rows, err %v", len(all), err)
	}
}

func TestSnapshotRepository_PruneCascades(t *testing.T) {
	s := newTestStore(t)
	repo := s.Snapshots()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		snap := &Snapshot{ID: string(rune('a' + i)), Width: 1, Height: 1, Theme: "forest", Species: "tulip",
			CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := repo.Save(snap, sampleFlowers()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	removed, err := repo.Prune(2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	var orphaned int
	s.DB().QueryRow(`SELECT COUNT(*) FROM snapshot_flowers WHERE snapshot_id IN ('a','b','c')`).Scan(&orphaned)
	if orphaned != 0 {
		t.Errorf("%d flower rows survived their snapshot", orphaned)
	}

	list, _ := repo.List(0)
	if len(list) != 2 || list[0].ID != "e" || list[1].ID != "d" {
		t.Errorf("kept = %v, want [e d]", ids(list))
	}
}

func TestSnapshotRepository_GetAndDelete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Snapshots()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID missing: %v", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete missing: %v", err)
	}

	if err := repo.Save(&Snapshot{ID: "x", Theme: "lavender", Species: "lily"}, sampleFlowers()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.GetByID("x")
	if err != nil || got.FlowerCount != 2 {
		t.Fatalf("GetByID = %+v, %v", got, err)
	}
	if err := repo.Delete("x"); err != nil {
		t.Errorf("Delete: %v", err)
	}
	if flowers, _ := repo.Flowers("x"); len(flowers) != 0 {
		t.Errorf("flowers survived delete: %d", len(flowers))
	}
}

func TestSnapshotRepository_DuplicateIDRollsBack(t *testing.T) {
	s := newTestStore(t)
	repo := s.Snapshots()

	if err := repo.Save(&Snapshot{ID: "dup", Theme: "ocean", Species: "rose"}, sampleFlowers()); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := repo.Save(&Snapshot{ID: "dup", Theme: "ocean", Species: "rose"}, sampleFlowers()); err == nil {
		t.Fatal("expected duplicate ID to fail")
	}
	flowers, err := repo.Flowers("dup")
	if err != nil {
		t.Fatalf("Flowers: %v", err)
	}
	if len(flowers) != 2 {
		t.Errorf("flowers = %d after failed save, want 2", len(flowers))
	}
}

func ids(list []*Snapshot) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}
