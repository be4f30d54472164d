package keymap

import (
	"fmt"
	"strings"
)

// Key is one normalized keyboard event token: a printable rune ("d"),
// a named key ("<esc>") or a modified key ("<c-s>").
type Key string

var namedKeys = map[string]struct{}{
	"esc": {}, "enter": {}, "tab": {}, "space": {}, "bs": {}, "del": {},
	"up": {}, "down": {}, "left": {}, "right": {}, "home": {}, "end": {},
	"pgup": {}, "pgdown": {},
}

// ParseKey normalizes a single key token. Angle-bracket forms are named
// keys or modifier combinations ("<c-s>", "<a-x>"); anything else must be
// a single printable rune.
func ParseKey(tok string) (Key, error) {
	if tok == "" {
		return "", fmt.Errorf("empty key token")
	}
	if strings.HasPrefix(tok, "<") {
		if !strings.HasSuffix(tok, ">") || len(tok) < 3 {
			return "", fmt.Errorf("malformed key token %q", tok)
		}
		inner := strings.ToLower(tok[1 : len(tok)-1])
		if _, ok := namedKeys[inner]; ok {
			return Key("<" + inner + ">"), nil
		}
		if len(inner) > 2 && inner[1] == '-' {
			switch inner[0] {
			case 'c', 'a', 's':
				rest := inner[2:]
				if len([]rune(rest)) == 1 {
					return Key("<" + inner + ">"), nil
				}
			}
		}
		return "", fmt.Errorf("unknown key token %q", tok)
	}
	runes := []rune(tok)
	if len(runes) != 1 {
		return "", fmt.Errorf("key token %q is not a single rune", tok)
	}
	return Key(tok), nil
}

// ParseChord splits chord notation into its key sequence: plain runes are
// one key each, angle-bracket groups are one key ("dd" -> d d;
// "<esc>q" -> <esc> q).
func ParseChord(notation string) ([]Key, error) {
	if notation == "" {
		return nil, fmt.Errorf("empty chord")
	}
	var keys []Key
	runes := []rune(notation)
	for i := 0; i < len(runes); {
		if runes[i] == '<' {
			end := -1
			for j := i + 1; j < len(runes); j++ {
				if runes[j] == '>' {
					end = j
					break
				}
			}
			if end < 0 {
				return nil, fmt.Errorf("unclosed '<' in chord %q", notation)
			}
			k, err := ParseKey(string(runes[i : end+1]))
			if err != nil {
				return nil, fmt.Errorf("chord %q: %w", notation, err)
			}
			keys = append(keys, k)
			i = end + 1
			continue
		}
		k, err := ParseKey(string(runes[i]))
		if err != nil {
			return nil, fmt.Errorf("chord %q: %w", notation, err)
		}
		keys = append(keys, k)
		i++
	}
	return keys, nil
}

// chordString renders a key sequence back into notation for error text.
func chordString(keys []Key) string {
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(string(k))
	}
	return sb.String()
}

// hasPrefix reports whether the candidate chord starts with prefix.
func hasPrefix(chord, prefix []Key) bool {
	if len(prefix) > len(chord) {
		return false
	}
	for i := range prefix {
		if chord[i] != prefix[i] {
			return false
		}
	}
	return true
}
