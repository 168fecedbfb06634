package exportstore

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "exports.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Lifecycle(t *testing.T) {
	s := newTestStore(t)

	q := "tp53"
	job := &ExportJob{
		ID:        "job-1",
		Status:    JobStatusQueued,
		Params:    ExportParams{GeneQuery: &q, ConditionIDs: []string{}, Scaling: "z-score"},
		CreatedAt: time.Now(),
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil || got == nil {
		t.Fatalf("GetJob: %v %v", got, err)
	}
	if got.Status != JobStatusQueued || *got.Params.GeneQuery != "tp53" {
		t.Errorf("unexpected job: %+v", got)
	}
	if got.Params.GeneIDs != nil {
		t.Errorf("expected nil gene ids, got %v", got.Params.GeneIDs)
	}
	if got.Params.ConditionIDs == nil || len(got.Params.ConditionIDs) != 0 {
		t.Errorf("expected empty condition ids, got %v", got.Params.ConditionIDs)
	}

	queued, err := s.ListQueuedJobs()
	if err != nil || len(queued) != 1 {
		t.Fatalf("ListQueuedJobs: %v %v", queued, err)
	}

	if err := s.UpdateJobStarted("job-1"); err != nil {
		t.Fatalf("UpdateJobStarted: %v", err)
	}
	if err := s.SaveResult("job-1", 2, 3, []byte(",a\ng,1\n")); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, _ = s.GetJob("job-1")
	if got.Status != JobStatusCompleted || got.Rows != 2 || got.Cols != 3 {
		t.Errorf("unexpected completed job: %+v", got)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("expected start and finish times")
	}

	csv, ok, err := s.GetResult("job-1")
	if err != nil || !ok || string(csv) != ",a\ng,1\n" {
		t.Errorf("GetResult: %q %v %v", csv, ok, err)
	}

	if err := s.DeleteJob("job-1"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if got, _ := s.GetJob("job-1"); got != nil {
		t.Error("expected job deleted")
	}
	if _, ok, _ := s.GetResult("job-1"); ok {
		t.Error("expected result deleted")
	}
}

func TestStore_Recovery(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b"} {
		if err := s.CreateJob(&ExportJob{ID: id, Status: JobStatusQueued, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	if err := s.UpdateJobStarted("a"); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkRunningAsFailed("server restarted"); err != nil {
		t.Fatal(err)
	}

	a, _ := s.GetJob("a")
	if a.Status != JobStatusFailed || a.Error != "server restarted" {
		t.Errorf("unexpected job a: %+v", a)
	}
	b, _ := s.GetJob("b")
	if b.Status != JobStatusQueued {
		t.Errorf("unexpected job b: %+v", b)
	}

	n, err := s.DeleteExpiredJobs(-time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired job, got %d", n)
	}

	jobs, err := s.ListJobs()
	if err != nil || len(jobs) != 1 || jobs[0].ID != "b" {
		t.Errorf("ListJobs: %v %v", jobs, err)
	}
}
