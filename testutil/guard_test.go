package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPredicates(t *testing.T) {
	cases := []struct {
		pred func(string) bool
		name string
		in   string
		want bool
	}{
		{InternalImportForbidden, "internal", "placekit/internal/core", true},
		{InternalImportForbidden, "internal", "placekit/pkg/domain", false},
		{InfraImportForbidden, "infra", "placekit/internal/infra/remote/sqlite", true},
		{InfraImportForbidden, "infra", "placekit/internal/infra", true},
		{InfraImportForbidden, "infra", "placekit/internal/remote", false},
		{AnyOf(InfraImportForbidden, func(p string) bool { return p == "fmt" }), "any", "fmt", true},
		{AnyOf(), "any", "fmt", false},
	}
	for _, c := range cases {
		if got := c.pred(c.in); got != c.want {
			t.Fatalf("%s(%q)=%v want %v", c.name, c.in, got, c.want)
		}
	}
}

// TestAssertNoDirectImports exercises the success path on a tiny temp package.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(string) bool { return false }, "none")
}

func TestDirectImportViolationsIgnoresTests(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.go":      "package tmp\nimport \"placekit/internal/infra/blob/fs\"\nvar _ = fs.New\n",
		"a_test.go": "package tmp\nimport \"placekit/internal/infra/remote/memory\"\n",
		"notes.txt": "import \"placekit/internal/infra/x\"",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	viols, err := directImportViolations(dir, InfraImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || !strings.Contains(viols[0], "(in a.go)") {
		t.Fatalf("unexpected violations %v", viols)
	}
	if _, err := directImportViolations(filepath.Join(dir, "missing"), InfraImportForbidden); err == nil {
		t.Fatalf("expected read error")
	}
}

type recordingFatal struct{ msg string }

func (r *recordingFatal) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfDirectViolations(t *testing.T) {
	rec := &recordingFatal{}
	failIfDirectViolations(rec, "reason", nil)
	if rec.msg != "" {
		t.Fatalf("no violations must not fail")
	}
	failIfDirectViolations(rec, "layering", []string{"x (in a.go)"})
	if !strings.Contains(rec.msg, "layering") || !strings.Contains(rec.msg, "x (in a.go)") {
		t.Fatalf("unexpected message %q", rec.msg)
	}
}
