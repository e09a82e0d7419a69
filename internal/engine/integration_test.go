package engine_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/ubbuilder/ubb/internal/engine"
	"github.com/ubbuilder/ubb/pkg/logger"
	"github.com/ubbuilder/ubb/pkg/plugin"
	"github.com/ubbuilder/ubb/pkg/process"
	"github.com/ubbuilder/ubb/pkg/sessionlog"
	"github.com/ubbuilder/ubb/pkg/types"
)

// scriptedEngine lays out a source engine whose tools are sh scripts.
// Each script appends its name to ran.txt so the order can be checked.
func scriptedEngine(t *testing.T, setupExit int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses sh scripts")
	}
	if testing.Short() {
		t.Skip("starts real processes")
	}

	root := t.TempDir()
	ran := filepath.Join(root, "ran.txt")
	tool := plugin.AutomationToolPath(root)

	script := func(path, body string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		content := "#!/bin/sh\n" + body + "\n"
		if err := os.WriteFile(path, []byte(content), 0755); err != nil {
			t.Fatal(err)
		}
	}

	script(plugin.SetupPath(root), `echo setup >> "`+ran+`"
echo "Checking dependencies..."
exit `+strconv.Itoa(setupExit))
	script(plugin.GenerateProjectFilesPath(root), `echo projectfiles >> "`+ran+`"`)
	script(plugin.RunUATPath(root), `echo uat >> "`+ran+`"
mkdir -p "`+filepath.Dir(tool)+`"
cat > "`+tool+`" <<'EOF'
#!/bin/sh
echo "****** [1/1] Compile Module.Core.cpp"
echo "LogInit: Warning: deprecated setting"
exit 0
EOF
chmod +x "`+tool+`"`)

	return root
}

func ranStages(t *testing.T, root string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "ran.txt"))
	if err != nil {
		t.Fatalf("read ran.txt: %v", err)
	}
	return strings.Fields(string(data))
}

func TestEndToEndSetupAndEngineBuild(t *testing.T) {
	root := scriptedEngine(t, 0)
	logDir := t.TempDir()

	h := newHarness(t, func(o *engine.Options) {
		o.Runner = process.NewExecRunner(logger.Nop(), process.DefaultTickInterval)
		o.SessionLog = sessionlog.New(logDir)
	})

	req := engineRequest(root)
	req.ContinueToEngineBuild = true
	if err := h.orch.RunSetup(req); err != nil {
		t.Fatalf("RunSetup: %v", err)
	}

	outcome := h.observer.Finished(t)
	if !outcome.Success || outcome.Stage != types.StageRunningEngineBuild {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Counters.CompiledTotal == 0 || outcome.Counters.Warnings == 0 {
		t.Errorf("counters not updated from engine output: %+v", outcome.Counters)
	}

	if got := strings.Join(ranStages(t, root), ","); got != "setup,projectfiles,uat" {
		t.Errorf("stages ran = %s", got)
	}

	logs, err := filepath.Glob(filepath.Join(logDir, "Build-*.log"))
	if err != nil || len(logs) != 1 {
		t.Fatalf("session logs = %v, %v", logs, err)
	}
	data, err := os.ReadFile(logs[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "=== BUILD FINISHED ===") {
		t.Errorf("session log missing summary:\n%s", data)
	}
}

func TestEndToEndSetupFailure(t *testing.T) {
	root := scriptedEngine(t, 2)

	h := newHarness(t, func(o *engine.Options) {
		o.Runner = process.NewExecRunner(logger.Nop(), process.DefaultTickInterval)
	})

	req := engineRequest(root)
	req.ContinueToEngineBuild = true
	if err := h.orch.RunSetup(req); err != nil {
		t.Fatalf("RunSetup: %v", err)
	}

	outcome := h.observer.Finished(t)
	if outcome.Success || outcome.Stage != types.StageRunningSetup || outcome.ExitCode != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if got := ranStages(t, root); len(got) != 1 {
		t.Errorf("later stages ran after a failed Setup: %v", got)
	}
	if !h.observer.HasLog("Checking dependencies...") {
		t.Error("Setup output was not forwarded")
	}
}
