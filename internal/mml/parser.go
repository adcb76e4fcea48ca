package mml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

type Parser struct{ cfg ParserConfig }

func NewParser(cfg ParserConfig) *Parser { return &Parser{cfg: cfg} }

// Parse reads a melody-oriented MML dialect: notes a-g with #/+/- accidentals,
// nNN note numbers, r rests, l default length, o/</> octave, t tempo, dots,
// ^ length ties, & note ties, [..|..]n loops and ';' or ',' separated tracks.
// Other commands are skipped.
func (p *Parser) Parse(input string) (*Score, error) {
	parts := splitTracks(stripComments(input))
	tracks := make([]Track, 0, len(parts))
	initialBPM := p.cfg.DefaultBPM
	for n, part := range parts {
		tr, bpm, err := p.parseTrack(part)
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", n+1, err)
		}
		if n == 0 {
			initialBPM = bpm
		}
		tracks = append(tracks, tr)
	}
	return &Score{
		Resolution: p.cfg.Resolution,
		InitialBPM: initialBPM,
		Tracks:     tracks,
	}, nil
}

type parseState struct {
	resolution int
	tick       int
	octave     int
	defaultLen int
	bpm        float64
	firstBPM   float64
	tied       bool
}

// parseTrack returns the track and the tempo in effect before its first note.
func (p *Parser) parseTrack(input string) (Track, float64, error) {
	expanded, err := expandLoops(input)
	if err != nil {
		return Track{}, 0, err
	}
	st := parseState{
		resolution: p.cfg.Resolution,
		octave:     p.cfg.DefaultOctave,
		defaultLen: p.cfg.Resolution / p.cfg.DefaultLValue,
		bpm:        p.cfg.DefaultBPM,
		firstBPM:   -1,
	}
	events := make([]Event, 0, 64)
	for i := 0; i < len(expanded); {
		ch := lower(expanded[i])
		if isSpace(ch) {
			i++
			continue
		}
		switch {
		case ch == 'n' && i+1 < len(expanded) && unicode.IsDigit(rune(expanded[i+1])):
			nn, next, e := parseNumberDefault(expanded, i+1, 60)
			if e != nil {
				return Track{}, 0, e
			}
			dur, next, e := parseLengthWithTie(expanded, next, st)
			if e != nil {
				return Track{}, 0, e
			}
			events = st.addNote(events, clampInt(nn, 0, 127), dur)
			i = next
		case isNote(ch):
			nn, dur, next, e := parseNote(expanded, i, st)
			if e != nil {
				return Track{}, 0, e
			}
			events = st.addNote(events, nn, dur)
			i = next
		case ch == 'r':
			dur, next, e := parseLengthWithTie(expanded, i+1, st)
			if e != nil {
				return Track{}, 0, e
			}
			events = append(events, Event{Type: EventRest, Tick: st.tick, Duration: dur})
			st.tick += dur
			st.tied = false
			i = next
		case ch == 'l':
			length, next, e := parseLengthToken(expanded, i+1, st)
			if e != nil {
				return Track{}, 0, e
			}
			st.defaultLen = length
			i = next
		case ch == 't':
			val, next, e := parseNumberDefault(expanded, i+1, int(st.bpm))
			if e != nil {
				return Track{}, 0, e
			}
			if val <= 0 {
				return Track{}, 0, fmt.Errorf("invalid tempo at %d", i)
			}
			st.bpm = float64(val)
			events = append(events, Event{Type: EventTempo, Tick: st.tick, Value: val})
			i = next
		case ch == 'o':
			val, next, e := parseNumberDefault(expanded, i+1, st.octave)
			if e != nil {
				return Track{}, 0, e
			}
			if val < p.cfg.MinOctave || val > p.cfg.MaxOctave {
				return Track{}, 0, fmt.Errorf("octave out of range at %d", i)
			}
			st.octave = val
			i = next
		case ch == '<' || ch == '>':
			val, next, e := parseNumberDefault(expanded, i+1, 1)
			if e != nil {
				return Track{}, 0, e
			}
			if ch == '<' {
				val = -val
			}
			st.octave += val * p.cfg.OctavePolarize
			st.octave = clampInt(st.octave, p.cfg.MinOctave, p.cfg.MaxOctave)
			i = next
		case ch == '&':
			st.tied = true
			i++
		default:
			i++
		}
	}
	bpm := st.firstBPM
	if bpm < 0 {
		bpm = st.bpm
	}
	return Track{Events: events, EndTick: st.tick}, bpm, nil
}

// addNote appends a note, or lengthens the previous one when a '&' tie joins
// two notes of the same pitch.
func (st *parseState) addNote(events []Event, nn, dur int) []Event {
	if st.firstBPM < 0 {
		st.firstBPM = st.bpm
	}
	tied := st.tied
	st.tied = false
	if tied && len(events) > 0 {
		last := &events[len(events)-1]
		if last.Type == EventNote && last.Note == nn && last.Tick+last.Duration == st.tick {
			last.Duration += dur
			st.tick += dur
			return events
		}
	}
	events = append(events, Event{Type: EventNote, Tick: st.tick, Duration: dur, Note: nn})
	st.tick += dur
	return events
}

func parseNote(s string, at int, st parseState) (int, int, int, error) {
	base := noteOffsets[lower(s[at])]
	i, shift := at+1, 0
	for i < len(s) {
		switch s[i] {
		case '#', '+':
			shift++
			i++
		case '-':
			shift--
			i++
		default:
			goto done
		}
	}
done:
	dur, next, err := parseLengthWithTie(s, i, st)
	if err != nil {
		return 0, 0, at, err
	}
	nn := (st.octave+1)*12 + base + shift
	return clampInt(nn, 0, 127), dur, next, nil
}

func parseLengthWithTie(s string, at int, st parseState) (int, int, error) {
	dur, i, err := parseLengthToken(s, at, st)
	if err != nil {
		return 0, at, err
	}
	for i < len(s) && s[i] == '^' {
		extra, next, e := parseLengthToken(s, i+1, st)
		if e != nil {
			return 0, at, e
		}
		dur += extra
		i = next
	}
	return dur, i, nil
}

func parseLengthToken(s string, at int, st parseState) (int, int, error) {
	val, i, err := parseNumberOptional(s, at)
	if err != nil {
		return 0, at, err
	}
	base := st.defaultLen
	if val == 0 || val > st.resolution {
		return 0, at, fmt.Errorf("invalid length %d at %d", val, at)
	}
	if val > 0 {
		base = st.resolution / val
	}
	dots := 0
	for i < len(s) && s[i] == '.' {
		dots++
		i++
	}
	dur, term := base, base
	for k := 0; k < dots; k++ {
		term >>= 1
		dur += term
	}
	return dur, i, nil
}

func parseNumberDefault(s string, at int, def int) (int, int, error) {
	v, i, err := parseNumberOptional(s, at)
	if err != nil {
		return 0, at, err
	}
	if v == -1 {
		return def, i, nil
	}
	return v, i, nil
}

func parseNumberOptional(s string, at int) (int, int, error) {
	i, start := at, at
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	if start == i {
		return -1, i, nil
	}
	n, err := strconv.Atoi(s[start:i])
	if err != nil {
		return 0, at, err
	}
	return n, i, nil
}

// TicksToDuration converts a tick count to seconds at the given tempo, where a
// quarter note is resolution/4 ticks.
func TicksToDuration(ticks, resolution int, bpm float64) float64 {
	if resolution <= 0 || bpm <= 0 {
		return 0
	}
	quarters := float64(ticks) / (float64(resolution) / 4)
	return quarters * 60 / bpm
}

func stripComments(src string) string {
	var out strings.Builder
	out.Grow(len(src))
	for i := 0; i < len(src); i++ {
		if i+1 < len(src) && src[i] == '/' && src[i+1] == '*' {
			i += 2
			for i < len(src) {
				if i+1 < len(src) && src[i] == '*' && src[i+1] == '/' {
					i++
					break
				}
				i++
			}
			continue
		}
		if i+1 < len(src) && src[i] == '/' && src[i+1] == '/' {
			i += 2
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				out.WriteByte('\n')
			}
			continue
		}
		out.WriteByte(src[i])
	}
	return out.String()
}

func splitTracks(src string) []string {
	parts := make([]string, 0, 4)
	for _, section := range splitTopLevel(src, ';') {
		for _, part := range splitTopLevel(section, ',') {
			if part = strings.TrimSpace(part); part != "" {
				parts = append(parts, part)
			}
		}
	}
	return parts
}

func splitTopLevel(src string, sep byte) []string {
	depth := 0
	start := 0
	parts := make([]string, 0, 4)
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, src[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, src[start:])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}

func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\r' || b == '\t' }
func isNote(b byte) bool  { _, ok := noteOffsets[b]; return ok }

func expandLoops(src string) (string, error) {
	out, i, err := parseExpanded(src, 0, 0)
	if err != nil {
		return "", err
	}
	if i != len(src) {
		return "", fmt.Errorf("unexpected parser position: %d", i)
	}
	return out, nil
}

func parseExpanded(src string, at, depth int) (string, int, error) {
	var out strings.Builder
	for at < len(src) {
		ch := src[at]
		if ch == ']' {
			if depth == 0 {
				return "", at, fmt.Errorf("unmatched ']' at %d", at)
			}
			return out.String(), at, nil
		}
		if ch != '[' {
			out.WriteByte(ch)
			at++
			continue
		}
		body, next, err := parseLoopBody(src, at+1, depth+1)
		if err != nil {
			return "", at, err
		}
		out.WriteString(body)
		at = next
	}
	if depth > 0 {
		return "", at, fmt.Errorf("unclosed '['")
	}
	return out.String(), at, nil
}

// parseLoopBody expands "[body]n". Text after a '|' is skipped on the last pass.
func parseLoopBody(src string, at, depth int) (string, int, error) {
	var pre, post strings.Builder
	breakHit := false
	for at < len(src) {
		ch := src[at]
		if ch == '[' {
			body, next, err := parseLoopBody(src, at+1, depth+1)
			if err != nil {
				return "", at, err
			}
			if breakHit {
				post.WriteString(body)
			} else {
				pre.WriteString(body)
			}
			at = next
			continue
		}
		if ch == '|' {
			breakHit = true
			at++
			continue
		}
		if ch == ']' {
			repeat, next, err := parseNumberDefault(src, at+1, 2)
			if err != nil {
				return "", at, err
			}
			if repeat < 1 {
				repeat = 1
			}
			preS, postS := pre.String(), post.String()
			var out strings.Builder
			for i := 0; i < repeat; i++ {
				out.WriteString(preS)
				if i < repeat-1 {
					out.WriteString(postS)
				}
			}
			return out.String(), next, nil
		}
		if breakHit {
			post.WriteByte(ch)
		} else {
			pre.WriteByte(ch)
		}
		at++
	}
	return "", at, fmt.Errorf("unclosed loop block")
}
