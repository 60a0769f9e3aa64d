package promo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pulsefm/model"
)

type fakePromoRepo struct {
	promos    []model.Promotion
	nextID    uint
	played    []uint
	deleted   []uint
	createErr error
}

func (r *fakePromoRepo) Create(p *model.Promotion) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	p.ID = r.nextID
	r.promos = append(r.promos, *p)
	return nil
}

func (r *fakePromoRepo) All() ([]model.Promotion, error) {
	return r.promos, nil
}

func (r *fakePromoRepo) ActiveAt(t time.Time) ([]model.Promotion, error) {
	var out []model.Promotion
	for _, p := range r.promos {
		if p.ActiveAt(t) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) ExpiredAt(t time.Time) ([]model.Promotion, error) {
	var out []model.Promotion
	for _, p := range r.promos {
		if p.Expired(t) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePromoRepo) MarkPlayed(id uint, playedAt time.Time) error {
	r.played = append(r.played, id)
	return nil
}

func (r *fakePromoRepo) Delete(id uint) error {
	r.deleted = append(r.deleted, id)
	for i, p := range r.promos {
		if p.ID == id {
			r.promos = append(r.promos[:i], r.promos[i+1:]...)
			break
		}
	}
	return nil
}

func newTestManager(t *testing.T, repo *fakePromoRepo, interval int) *Manager {
	t.Helper()
	m, err := NewManager(repo, t.TempDir(), interval)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func writePromoFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("promo-audio"), 0o644); err != nil {
		t.Fatalf("write promo file: %v", err)
	}
	return path
}

func TestDueCounter(t *testing.T) {
	m := newTestManager(t, &fakePromoRepo{}, 3)

	for i := 0; i < 2; i++ {
		m.TrackPlayed()
	}
	if m.Due() {
		t.Fatalf("due after %d songs with interval 3", m.SongsSinceBreak())
	}
	m.TrackPlayed()
	if !m.Due() {
		t.Fatal("not due after reaching the interval")
	}

	m.Reset()
	if m.Due() || m.SongsSinceBreak() != 0 {
		t.Error("reset should clear the counter")
	}
}

func TestAddMovesFileAndCreatesRow(t *testing.T) {
	repo := &fakePromoRepo{}
	m := newTestManager(t, repo, 23)
	upload := writePromoFile(t, t.TempDir(), "upload.mp3")

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	promo, err := m.Add("Summer Fest", "City Events", "weekend festival spot", from, to, upload)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := os.Stat(upload); !os.IsNotExist(err) {
		t.Error("uploaded file should have been moved away")
	}
	if _, err := os.Stat(promo.FilePath); err != nil {
		t.Errorf("promo audio missing at %s: %v", promo.FilePath, err)
	}
	if promo.ID == 0 {
		t.Error("promotion row should have an ID")
	}
	if promo.Promoter != "City Events" {
		t.Errorf("promoter = %q", promo.Promoter)
	}
}

func TestActivePromosSkipsMissingFiles(t *testing.T) {
	repo := &fakePromoRepo{}
	m := newTestManager(t, repo, 23)
	now := time.Now()

	onDisk := writePromoFile(t, t.TempDir(), "ok.mp3")
	repo.promos = []model.Promotion{
		{ID: 1, Title: "on disk", FilePath: onDisk, ActiveFrom: now.Add(-time.Hour), ActiveTo: now.Add(time.Hour)},
		{ID: 2, Title: "gone", FilePath: filepath.Join(t.TempDir(), "gone.mp3"), ActiveFrom: now.Add(-time.Hour), ActiveTo: now.Add(time.Hour)},
		{ID: 3, Title: "future", FilePath: onDisk, ActiveFrom: now.Add(time.Hour), ActiveTo: now.Add(2 * time.Hour)},
	}

	active := m.ActivePromos(now)
	if len(active) != 1 || active[0].ID != 1 {
		t.Fatalf("ActivePromos = %+v, want only promo 1", active)
	}
}

func TestCleanupRemovesExpired(t *testing.T) {
	repo := &fakePromoRepo{}
	m := newTestManager(t, repo, 23)
	now := time.Now()

	expiredFile := writePromoFile(t, t.TempDir(), "old.mp3")
	repo.promos = []model.Promotion{
		{ID: 1, Title: "expired", FilePath: expiredFile, ActiveFrom: now.Add(-3 * time.Hour), ActiveTo: now.Add(-time.Hour)},
		{ID: 2, Title: "current", FilePath: "whatever.mp3", ActiveFrom: now.Add(-time.Hour), ActiveTo: now.Add(time.Hour)},
	}

	if got := m.Cleanup(now); got != 1 {
		t.Fatalf("Cleanup = %d, want 1", got)
	}
	if _, err := os.Stat(expiredFile); !os.IsNotExist(err) {
		t.Error("expired promo audio should be deleted")
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != 1 {
		t.Errorf("deleted rows = %v, want [1]", repo.deleted)
	}
}

func TestMarkPlayed(t *testing.T) {
	repo := &fakePromoRepo{}
	m := newTestManager(t, repo, 23)
	m.MarkPlayed(7)
	if len(repo.played) != 1 || repo.played[0] != 7 {
		t.Errorf("played = %v, want [7]", repo.played)
	}
}
