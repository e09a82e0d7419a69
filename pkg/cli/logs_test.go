package cli

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ubbuilder/ubb/pkg/types"
)

func TestReadLastNLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Build-20240101-120000.log")
	lines := []string{"one", "two", "three", "four"}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		n    int
		want string
	}{
		{n: 2, want: "three\nfour\n"},
		{n: 10, want: "one\ntwo\nthree\nfour\n"},
		{n: 0, want: "one\ntwo\nthree\nfour\n"},
	}

	for _, tt := range tests {
		got, err := readLastNLines(path, tt.n)
		if err != nil {
			t.Fatalf("readLastNLines(%d): %v", tt.n, err)
		}
		if got != tt.want {
			t.Errorf("readLastNLines(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestReadLastNLines_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.log")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	got, err := readLastNLines(path, 5)
	if err != nil || got != "" {
		t.Errorf("readLastNLines = %q, %v", got, err)
	}
}

func TestSessionLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"Build-20240102-090000.log",
		"Build-20240101-120000.log",
		"notes.txt",
		"other.log",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "Build-dir.log"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := sessionLogs(dir)
	if err != nil {
		t.Fatalf("sessionLogs: %v", err)
	}
	want := []string{
		filepath.Join(dir, "Build-20240101-120000.log"),
		filepath.Join(dir, "Build-20240102-090000.log"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("sessionLogs = %v, want %v", got, want)
	}

	missing, err := sessionLogs(filepath.Join(dir, "missing"))
	if err != nil || missing != nil {
		t.Errorf("missing dir = %v, %v", missing, err)
	}
}

func TestOutcomeError(t *testing.T) {
	tests := []struct {
		name    string
		outcome types.Outcome
		want    string
	}{
		{name: "success", outcome: types.Outcome{Success: true, Stage: types.StageRunningEngineBuild}},
		{name: "cancelled", outcome: types.Outcome{Cancelled: true}, want: types.ErrCancelled.Error()},
		{
			name:    "stage failure",
			outcome: types.Outcome{Owner: types.OwnerSequencer, Stage: types.StageRunningSetup, ExitCode: 2},
			want:    "Setup failed with exit code 2",
		},
		{
			name:    "queue failure",
			outcome: types.Outcome{Owner: types.OwnerPlugins, Stage: types.StageRunningPluginBuild, Processed: 3},
			want:    "plugin queue finished with failures (3 processed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := outcomeError(tt.outcome)
			if tt.want == "" {
				if err != nil {
					t.Errorf("outcomeError = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Errorf("outcomeError = %v, want %q", err, tt.want)
			}
		})
	}
}
