package jobs

import (
	"testing"
	"time"

	"relic/internal/slogutil"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(t.TempDir(), slogutil.NewDiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreCreateAndGet(t *testing.T) {
	store := openTestStore(t)

	if err := store.CreateRecord("job-1", "https://github.com/a/b.git"); err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetRecord("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("record not found after create")
	}
	if rec.Locator != "https://github.com/a/b.git" {
		t.Errorf("Locator = %q", rec.Locator)
	}
	if rec.Stage != StageInit {
		t.Errorf("Stage = %s, want %s", rec.Stage, StageInit)
	}
	if rec.CompletedAt != nil {
		t.Error("fresh record has completion time")
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := openTestStore(t)

	rec, err := store.GetRecord("nope")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("got record %+v for unknown id", rec)
	}
}

func TestStoreFinishRecord(t *testing.T) {
	store := openTestStore(t)

	if err := store.CreateRecord("job-1", "u"); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRecord("job-1", StageComplete, `{"candidate":{}}`, ""); err != nil {
		t.Fatal(err)
	}

	rec, err := store.GetRecord("job-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Stage != StageComplete {
		t.Errorf("Stage = %s", rec.Stage)
	}
	if rec.CompletedAt == nil {
		t.Error("finished record missing completion time")
	}
	if rec.WinnerJSON == "" {
		t.Error("finished record missing winner")
	}

	if err := store.FinishRecord("nope", StageError, "", "boom"); err == nil {
		t.Error("finishing unknown record succeeded")
	}
}

func TestStoreListRecords(t *testing.T) {
	store := openTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		if err := store.CreateRecord(id, "u"); err != nil {
			t.Fatal(err)
		}
	}

	records, err := store.ListRecords(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Errorf("len = %d, want 2", len(records))
	}
}

func TestStoreCleanupOld(t *testing.T) {
	store := openTestStore(t)

	store.CreateRecord("done", "u")
	store.FinishRecord("done", StageComplete, "", "")
	store.CreateRecord("running", "u")

	// A negative retention puts the cutoff in the future, so anything
	// terminal is eligible.
	removed, err := store.CleanupOld(-time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	rec, err := store.GetRecord("running")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Error("running record was swept")
	}
}
