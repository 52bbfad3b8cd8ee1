// Package golden runs every script in this directory through a fresh VM
// and diffs its stdout (and, for scripts that end in a runtime error, the
// error text) against a checked-in .want/.err file, adapted from the
// teacher's internal/filetest harness.
package golden

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kylelemons/godebug/diff"

	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
	"github.com/kristofer/vex/pkg/stdlib"
	"github.com/kristofer/vex/pkg/vm"
)

var update = flag.Bool("test.update-golden", false, "write .want/.err files instead of comparing against them")

func TestGolden(t *testing.T) {
	dents, err := os.ReadDir(".")
	if err != nil {
		t.Fatal(err)
	}

	for _, dent := range dents {
		if dent.IsDir() || filepath.Ext(dent.Name()) != ".vex" {
			continue
		}
		name := dent.Name()

		t.Run(name, func(t *testing.T) {
			src, err := os.ReadFile(name)
			if err != nil {
				t.Fatal(err)
			}

			var stdout bytes.Buffer
			h := heap.New(heap.Config{})
			g := global.New()
			v := vm.New(h, g, vm.Config{Stdout: &stdout})
			stdlib.RegisterWithStdin(v, strings.NewReader(""))

			result, runErr := v.Interpret(string(src))

			base := strings.TrimSuffix(name, ".vex")
			wantFile := base + ".want"
			errFile := base + ".err"

			if result == vm.RuntimeErr {
				diffOrUpdate(t, errFile, runErr.Error()+"\n")
				return
			}
			if result == vm.CompileErr {
				diffOrUpdate(t, errFile, runErr.Error()+"\n")
				return
			}

			diffOrUpdate(t, wantFile, stdout.String())
		})
	}
}

func diffOrUpdate(t *testing.T, goldFile, got string) {
	t.Helper()

	if *update {
		if err := os.WriteFile(goldFile, []byte(got), 0o600); err != nil {
			t.Fatal(err)
		}
		return
	}

	wantb, err := os.ReadFile(goldFile)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	want := string(wantb)
	if patch := diff.Diff(want, got); patch != "" {
		t.Errorf("diff against %s:\n%s", goldFile, patch)
	}
}
