package lutfilter

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCube(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "look.cube")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write cube: %v", err)
	}
	return path
}

// TestLoadCube_ParsesMinimalFile verifies the happy path: directives,
// comments and data rows of a size-2 cube.
func TestLoadCube_ParsesMinimalFile(t *testing.T) {
	path := writeCube(t, `# test look
TITLE "inverted red"
LUT_3D_SIZE 2
DOMAIN_MIN 0.0 0.0 0.0
DOMAIN_MAX 1.0 1.0 1.0

1.0 0.0 0.0
0.0 0.0 0.0
1.0 1.0 0.0
0.0 1.0 0.0
1.0 0.0 1.0
0.0 0.0 1.0
1.0 1.0 1.0
0.0 1.0 1.0
`)
	table, err := LoadCube(path)
	if err != nil {
		t.Fatalf("LoadCube failed: %v", err)
	}
	if table.Size != 2 {
		t.Fatalf("expected size 2, got %d", table.Size)
	}
	// Node (r=0, g=0, b=0) carries the first row: red inverted to 1.
	if got := table.sample(0, 0, 0); got != [3]float32{1, 0, 0} {
		t.Errorf("sample(0,0,0) = %v, want [1 0 0]", got)
	}
	// Node (r=1, g=1, b=1) carries the last row.
	if got := table.sample(1, 1, 1); got != [3]float32{0, 1, 1} {
		t.Errorf("sample(1,1,1) = %v, want [0 1 1]", got)
	}
	t.Log("✅ Minimal .cube parses with correct node layout")
}

// TestLoadCube_RejectsMalformed verifies the parser refuses the
// failure shapes we care about, each with a useful error.
func TestLoadCube_RejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing size", "0.0 0.0 0.0\n"},
		{"1d lut", "LUT_1D_SIZE 256\n"},
		{"short data", "LUT_3D_SIZE 2\n1.0 0.0 0.0\n"},
		{"wrong arity", "LUT_3D_SIZE 2\n1.0 0.0\n"},
		{"bad number", "LUT_3D_SIZE 2\n1.0 0.0 abc\n"},
		{"exotic domain", "LUT_3D_SIZE 2\nDOMAIN_MAX 4.0 4.0 4.0\n"},
		{"absurd size", "LUT_3D_SIZE 9999\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadCube(writeCube(t, tc.content)); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}

	if _, err := LoadCube(filepath.Join(t.TempDir(), "missing.cube")); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

// TestBuiltinTables_AllResolve verifies every built-in look generates
// a well-formed cube and the cache hands back the same instance.
func TestBuiltinTables_AllResolve(t *testing.T) {
	for _, id := range []Identity{Mono, Sepia, Vivid, Fade, Arctic} {
		table := builtinTable(id)
		if !table.valid() {
			t.Errorf("%v generated an invalid table", id)
			continue
		}
		if again := builtinTable(id); again != table {
			t.Errorf("%v table not cached", id)
		}
	}
	if builtinTable(None) != nil {
		t.Error("None must not resolve to a table")
	}
	if builtinTable(Custom) != nil {
		t.Error("Custom must not resolve to a built-in table")
	}
}
