package lutfilter

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// tableSize is the edge length of procedurally built tables. 33 is the
// interchange-standard size: fine enough that trilinear error stays
// under one 8-bit step for smooth transforms.
const tableSize = 33

// Table is a 3D color lookup cube with Size³ RGB output triples in
// [0, 1], red index varying fastest (the .cube interchange layout).
type Table struct {
	Size int
	Data []float32
}

// valid reports whether the table is shaped for sampling.
func (t *Table) valid() bool {
	return t != nil && t.Size >= 2 && len(t.Data) == t.Size*t.Size*t.Size*3
}

// sample returns the output triple at integer cell (r, g, b).
func (t *Table) sample(r, g, b int) [3]float32 {
	i := ((b*t.Size+g)*t.Size + r) * 3
	return [3]float32{t.Data[i], t.Data[i+1], t.Data[i+2]}
}

// buildTable fills a tableSize cube by pushing every grid color
// through fn.
func buildTable(fn func(r, g, b float32) (float32, float32, float32)) *Table {
	n := tableSize
	t := &Table{Size: n, Data: make([]float32, n*n*n*3)}
	i := 0
	for b := 0; b < n; b++ {
		for g := 0; g < n; g++ {
			for r := 0; r < n; r++ {
				rr, gg, bb := fn(
					float32(r)/float32(n-1),
					float32(g)/float32(n-1),
					float32(b)/float32(n-1),
				)
				t.Data[i+0] = clamp01(rr)
				t.Data[i+1] = clamp01(gg)
				t.Data[i+2] = clamp01(bb)
				i += 3
			}
		}
	}
	return t
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func luma(r, g, b float32) float32 {
	return 0.299*r + 0.587*g + 0.114*b
}

var (
	builtinMu     sync.Mutex
	builtinTables = map[Identity]*Table{}
)

// builtinTable lazily builds and caches the cube for a built-in look.
// Returns nil for None, Custom, or unknown identities.
func builtinTable(id Identity) *Table {
	builtinMu.Lock()
	defer builtinMu.Unlock()
	if t, ok := builtinTables[id]; ok {
		return t
	}

	var t *Table
	switch id {
	case Mono:
		t = buildTable(func(r, g, b float32) (float32, float32, float32) {
			y := luma(r, g, b)
			return y, y, y
		})
	case Sepia:
		t = buildTable(func(r, g, b float32) (float32, float32, float32) {
			return 0.393*r + 0.769*g + 0.189*b,
				0.349*r + 0.686*g + 0.168*b,
				0.272*r + 0.534*g + 0.131*b
		})
	case Vivid:
		t = buildTable(func(r, g, b float32) (float32, float32, float32) {
			// Saturation push around luma, then a mild contrast curve.
			y := luma(r, g, b)
			sat := func(c float32) float32 { return y + (c-y)*1.35 }
			con := func(c float32) float32 { return (c-0.5)*1.12 + 0.5 }
			return con(sat(r)), con(sat(g)), con(sat(b))
		})
	case Fade:
		t = buildTable(func(r, g, b float32) (float32, float32, float32) {
			// Muted saturation with lifted blacks.
			y := luma(r, g, b)
			f := func(c float32) float32 { return (y + (c-y)*0.78) * 0.88 }
			return f(r) + 0.09, f(g) + 0.09, f(b) + 0.09
		})
	case Arctic:
		t = buildTable(func(r, g, b float32) (float32, float32, float32) {
			// Cool cast: damp red, push blue, touch of lift.
			return r*0.90 + 0.01, g*0.98 + 0.015, b*1.06 + 0.03
		})
	default:
		return nil
	}

	builtinTables[id] = t
	return t
}

// LoadCube parses a .cube file (Adobe/Resolve interchange format) for
// use as a Custom look. Supported directives: TITLE, LUT_3D_SIZE,
// DOMAIN_MIN, DOMAIN_MAX. Only the identity input domain [0,1]³ is
// accepted; 1D LUTs are rejected.
func LoadCube(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lutfilter: open cube: %w", err)
	}
	defer f.Close()

	var (
		t       Table
		lineNum int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToUpper(fields[0]) {
		case "TITLE":
			// informational only
		case "LUT_1D_SIZE":
			return nil, fmt.Errorf("lutfilter: %s is a 1D LUT, only 3D supported", path)
		case "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, fmt.Errorf("lutfilter: %s:%d: malformed LUT_3D_SIZE", path, lineNum)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil || n < 2 || n > 256 {
				return nil, fmt.Errorf("lutfilter: %s:%d: unsupported LUT_3D_SIZE %q", path, lineNum, fields[1])
			}
			t.Size = n
			t.Data = make([]float32, 0, n*n*n*3)
		case "DOMAIN_MIN", "DOMAIN_MAX":
			want := float64(0)
			if strings.ToUpper(fields[0]) == "DOMAIN_MAX" {
				want = 1
			}
			if len(fields) != 4 {
				return nil, fmt.Errorf("lutfilter: %s:%d: malformed %s", path, lineNum, fields[0])
			}
			for _, fs := range fields[1:] {
				v, err := strconv.ParseFloat(fs, 32)
				if err != nil || v != want {
					return nil, fmt.Errorf("lutfilter: %s:%d: only the [0,1] domain is supported", path, lineNum)
				}
			}
		default:
			if len(fields) != 3 {
				return nil, fmt.Errorf("lutfilter: %s:%d: expected 3 values, got %d", path, lineNum, len(fields))
			}
			if t.Size == 0 {
				return nil, fmt.Errorf("lutfilter: %s:%d: data before LUT_3D_SIZE", path, lineNum)
			}
			for _, fs := range fields {
				v, err := strconv.ParseFloat(fs, 32)
				if err != nil {
					return nil, fmt.Errorf("lutfilter: %s:%d: bad value %q", path, lineNum, fs)
				}
				t.Data = append(t.Data, clamp01(float32(v)))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lutfilter: read cube: %w", err)
	}
	if t.Size == 0 {
		return nil, fmt.Errorf("lutfilter: %s: missing LUT_3D_SIZE", path)
	}
	if !t.valid() {
		return nil, fmt.Errorf("lutfilter: %s: expected %d values for size %d, got %d",
			path, t.Size*t.Size*t.Size*3, t.Size, len(t.Data))
	}
	return &t, nil
}
