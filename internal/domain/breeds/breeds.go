// Package breeds holds the breed-standard growth curves used as a benchmark
// for sampled bird weight. A curve lists the expected average weight in
// grams for day 1, day 2, ... of age.
package breeds

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mamadbah2/broiler/internal/apperror"
)

// Table maps a breed name to its growth curve.
type Table map[string][]int

// Default returns the built-in reference curves.
func Default() Table {
	return Table{
		"Ross 308": {
			40, 80, 130, 190, 250, 320, 400, 480, 560, 640,
			720, 810, 900, 990, 1080, 1170, 1260, 1350, 1440, 1530,
			1620, 1710, 1800, 1890, 1980, 2070, 2160, 2250, 2340, 2430,
			2520, 2610, 2700, 2790, 2880, 2970, 3060, 3150, 3240, 3330,
			3420,
		},
		"Cobb 500": {
			42, 85, 135, 200, 260, 330, 410, 490, 570, 650,
			730, 820, 910, 1000, 1090, 1180, 1270, 1360, 1450, 1540,
			1630, 1720, 1810, 1900, 1990, 2080, 2170, 2260, 2350, 2440,
			2530, 2620, 2710, 2800, 2890, 2980, 3070, 3160, 3250, 3340,
			3430,
		},
	}
}

// Curve returns a copy of the breed's curve. Unknown breeds yield an empty,
// non-nil slice.
func (t Table) Curve(breed string) []int {
	curve := t[breed]
	out := make([]int, len(curve))
	copy(out, curve)
	return out
}

// Expected looks up the expected weight at the given age. ok is false when
// the breed is unknown or the age falls outside the curve (age <= 0 or
// beyond its last day).
func (t Table) Expected(breed string, ageDays int) (grams int, ok bool) {
	curve := t[breed]
	if ageDays <= 0 || ageDays > len(curve) {
		return 0, false
	}
	return curve[ageDays-1], true
}

// Names returns the known breed names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds or replaces curves from other after validating them.
func (t Table) Merge(other Table) error {
	for name, curve := range other {
		if err := validateCurve(name, curve); err != nil {
			return err
		}
	}
	for name, curve := range other {
		t[name] = append([]int(nil), curve...)
	}
	return nil
}

// LoadFile reads extra curves from a YAML document of the form
//
//	breeds:
//	  Hubbard Classic: [41, 82, ...]
//
// and merges them into t.
func (t Table) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read breed curves %s: %w", path, err)
	}
	return t.LoadYAML(raw)
}

// LoadYAML merges curves from an in-memory YAML document.
func (t Table) LoadYAML(raw []byte) error {
	var doc struct {
		Breeds map[string][]int `yaml:"breeds"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return apperror.InvalidConfiguration("breed_curves", "invalid YAML").Wrap(err)
	}
	return t.Merge(doc.Breeds)
}

func validateCurve(name string, curve []int) error {
	if name == "" {
		return apperror.InvalidConfiguration("breed_curves", "breed name must not be empty")
	}
	if len(curve) == 0 {
		return apperror.InvalidConfiguration("breed_curves", fmt.Sprintf("curve for %q is empty", name))
	}
	for day, grams := range curve {
		if grams < 0 {
			return apperror.InvalidConfiguration("breed_curves", fmt.Sprintf("curve for %q has negative weight on day %d", name, day+1))
		}
	}
	return nil
}
