package queue_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ubbuilder/ubb/pkg/queue"
	"github.com/ubbuilder/ubb/pkg/types"
)

type fixture struct {
	manifest string
	dest     string
	engine   string
}

func newFixture(t *testing.T, name string) fixture {
	t.Helper()
	root := t.TempDir()

	manifest := filepath.Join(root, "src", name, name+".uplugin")
	if err := os.MkdirAll(filepath.Dir(manifest), 0755); err != nil {
		t.Fatal(err)
	}
	content := `{"FriendlyName":"` + name + `","Modules":[{"Name":"` + name + `","Type":"Runtime","WhitelistPlatforms":["Win64","Mac"]}]}`
	if err := os.WriteFile(manifest, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(root, "out")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatal(err)
	}

	return fixture{manifest: manifest, dest: dest, engine: filepath.Join(root, "UE_4.26")}
}

func (f fixture) job() types.PluginJob {
	return types.PluginJob{
		ManifestPath:    f.manifest,
		DestinationPath: f.dest,
		EngineRootPath:  f.engine,
		EngineVersion:   "4.26",
	}
}

func TestEnqueue(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)

	job, warnings, err := q.Enqueue(f.job())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings %v", warnings)
	}
	if job.ID == "" || job.Status != types.JobPending || job.PluginName != "Foo" {
		t.Errorf("unexpected job %+v", job)
	}
	if q.Len() != 1 || !q.IsPending(job.ID) {
		t.Error("job should be pending in the queue")
	}
}

func TestEnqueue_Validation(t *testing.T) {
	f := newFixture(t, "Foo")

	tests := []struct {
		name   string
		mutate func(*types.PluginJob)
		field  string
	}{
		{"missing manifest", func(j *types.PluginJob) { j.ManifestPath = filepath.Join(f.dest, "nope.uplugin") }, "manifest"},
		{"manifest is a directory", func(j *types.PluginJob) { j.ManifestPath = f.dest }, "manifest"},
		{"missing destination", func(j *types.PluginJob) { j.DestinationPath = filepath.Join(f.dest, "missing") }, "destination"},
		{"destination is a file", func(j *types.PluginJob) { j.DestinationPath = f.manifest }, "destination"},
		{"no engine", func(j *types.PluginJob) { j.EngineRootPath = "" }, "engine"},
		{"zip without location", func(j *types.PluginJob) { j.ZipRequested = true }, "zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queue.New(nil)
			job := f.job()
			tt.mutate(&job)

			_, _, err := q.Enqueue(job)
			var v *types.ValidationError
			if !errors.As(err, &v) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if v.Field != tt.field {
				t.Errorf("field = %q, want %q", v.Field, tt.field)
			}
			if q.Len() != 0 {
				t.Error("queue must be unchanged on validation failure")
			}
		})
	}
}

func TestEnqueue_AltCompilerGate(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)

	job := f.job()
	job.EngineVersion = "4.24"
	job.UseAltCompiler = true

	got, warnings, err := q.Enqueue(job)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got.UseAltCompiler {
		t.Error("alt compiler must be dropped before 4.25")
	}
	if len(warnings) != 1 {
		t.Errorf("expected one warning, got %v", warnings)
	}

	job.EngineVersion = "4.25"
	got, _, _ = q.Enqueue(job)
	if !got.UseAltCompiler {
		t.Error("alt compiler must be kept for 4.25")
	}
}

func TestEnqueue_ManifestPlatforms(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)

	job := f.job()
	job.UseManifestPlatforms = true
	got, _, err := q.Enqueue(job)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if !reflect.DeepEqual(got.TargetPlatforms, []string{"Win64", "Mac"}) {
		t.Errorf("TargetPlatforms = %v", got.TargetPlatforms)
	}

	job.TargetPlatforms = []string{"Linux"}
	got, _, _ = q.Enqueue(job)
	if !reflect.DeepEqual(got.TargetPlatforms, []string{"Linux"}) {
		t.Errorf("explicit platforms must win, got %v", got.TargetPlatforms)
	}
}

func TestEnqueue_DuplicatesAllowed(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)

	a, _, _ := q.Enqueue(f.job())
	b, _, _ := q.Enqueue(f.job())
	if a.ID == b.ID {
		t.Error("duplicate jobs need distinct IDs")
	}
	if q.Len() != 2 {
		t.Errorf("Len = %d", q.Len())
	}
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)
	job, _, _ := q.Enqueue(f.job())

	if err := q.MarkFinished(job.ID, true); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("pending -> succeeded must fail, got %v", err)
	}
	if err := q.MarkRunning(job.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if running, ok := q.Running(); !ok || running.ID != job.ID {
		t.Error("expected running job")
	}
	if err := q.Remove(job.ID); !errors.Is(err, queue.ErrJobRunning) {
		t.Errorf("running job must not be removable, got %v", err)
	}
	if err := q.MarkFinished(job.ID, false); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}
	if err := q.MarkRunning(job.ID); !errors.Is(err, queue.ErrInvalidTransition) {
		t.Errorf("failed -> running must fail, got %v", err)
	}

	got, _ := q.Get(job.ID)
	if got.Status != types.JobFailed {
		t.Errorf("status = %s", got.Status)
	}
	if len(q.Pending()) != 0 {
		t.Error("no pending jobs expected")
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)
	a, _, _ := q.Enqueue(f.job())
	b, _, _ := q.Enqueue(f.job())

	if err := q.Remove(a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := q.Remove(a.ID); !errors.Is(err, queue.ErrJobNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	jobs := q.Jobs()
	if len(jobs) != 1 || jobs[0].ID != b.ID {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestIsValid(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)
	job, _, _ := q.Enqueue(f.job())

	if !q.IsValid(job) {
		t.Fatal("fresh destination must be valid")
	}
	if err := os.WriteFile(filepath.Join(f.dest, "Foo.uplugin"), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	if q.IsValid(job) {
		t.Error("packaged plugin must be reported as already compiled")
	}
}

func TestJobsReturnsCopies(t *testing.T) {
	f := newFixture(t, "Foo")
	q := queue.New(nil)
	job, _, _ := q.Enqueue(f.job())

	jobs := q.Jobs()
	jobs[0].Status = types.JobSucceeded

	if !q.IsPending(job.ID) {
		t.Error("mutating a snapshot must not change the queue")
	}
}
