package sequence

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ImportedName addresses the imported sequence in a Library.
const ImportedName = "imported"

type step struct {
	name   string
	typ    NoteType
	dotted bool
}

func q(name string) step  { return step{name: name, typ: Quarter} }
func h(name string) step  { return step{name: name, typ: Half} }
func e(name string) step  { return step{name: name, typ: Eighth} }
func dq(name string) step { return step{name: name, typ: Quarter, dotted: true} }

// build expands steps against a quarter-note length. Builtins are static, so
// a bad note name is a programming error.
func build(name string, quarter time.Duration, steps ...step) Sequence {
	seq := Sequence{Name: name, Notes: make([]Note, 0, len(steps))}
	for _, s := range steps {
		d := time.Duration(float64(quarter) * s.typ.Beats())
		if s.dotted {
			d = d * 3 / 2
		}
		n, err := N(s.name, d, s.typ, s.dotted)
		if err != nil {
			panic(fmt.Sprintf("builtin %s: %v", name, err))
		}
		seq.Notes = append(seq.Notes, n)
	}
	return seq
}

// Builtins returns the built-in sequences keyed by name.
func Builtins() map[string]Sequence {
	list := []Sequence{
		build("three-notes", time.Second, q("C3"), q("D3"), q("E3")),
		build("c-major-scale", 750*time.Millisecond,
			q("C4"), q("D4"), q("E4"), q("F4"), q("G4"), q("A4"), q("B4"), h("C5")),
		build("do-re-mi", 600*time.Millisecond,
			dq("C4"), e("D4"), dq("E4"), e("C4"), q("E4"), q("C4"), h("E4")),
		build("arpeggio", 700*time.Millisecond,
			q("C4"), q("E4"), q("G4"), q("C5"), q("G4"), q("E4"), h("C4")),
		build("twinkle", 600*time.Millisecond,
			q("C4"), q("C4"), q("G4"), q("G4"), q("A4"), q("A4"), h("G4"),
			q("F4"), q("F4"), q("E4"), q("E4"), q("D4"), q("D4"), h("C4")),
		build("octave-leap", 750*time.Millisecond, h("A3"), h("A4"), h("A3")),
	}
	out := make(map[string]Sequence, len(list))
	for _, s := range list {
		out[s.Name] = s
	}
	return out
}

// Library holds the built-in sequences plus at most one imported sequence.
type Library struct {
	mu       sync.RWMutex
	builtins map[string]Sequence
	imported *Sequence
}

func NewLibrary() *Library {
	return &Library{builtins: Builtins()}
}

// Names lists the built-in names in sorted order, followed by ImportedName
// when an import is loaded.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.builtins)+1)
	for name := range l.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	if l.imported != nil {
		names = append(names, ImportedName)
	}
	return names
}

// Get returns the named sequence transposed by the given number of semitones.
func (l *Library) Get(name string, transpose int) (Sequence, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if name == ImportedName {
		if l.imported == nil {
			return Sequence{}, fmt.Errorf("%w: nothing imported", ErrUnknownSequence)
		}
		return l.imported.Transpose(transpose), nil
	}
	seq, ok := l.builtins[name]
	if !ok {
		return Sequence{}, fmt.Errorf("%w: %q", ErrUnknownSequence, name)
	}
	return seq.Transpose(transpose), nil
}

// SetImported replaces the imported sequence. An invalid sequence is rejected
// and the previous import stays.
func (l *Library) SetImported(seq Sequence) error {
	if err := seq.Validate(); err != nil {
		return err
	}
	if seq.Name == "" {
		seq.Name = ImportedName
	}
	l.mu.Lock()
	l.imported = &seq
	l.mu.Unlock()
	return nil
}

func (l *Library) Imported() (Sequence, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.imported == nil {
		return Sequence{}, false
	}
	return *l.imported, true
}
