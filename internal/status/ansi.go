package status

import "strings"

// stripANSI removes CSI (ESC [ ... letter) and OSC (ESC ] ... BEL/ST)
// escape sequences from s. It is intentionally narrow: it recognizes only
// the two families of sequences a shell actually emits for cursor motion,
// color, and window-title changes, not the full terminal-control-sequence
// grammar (explicitly out of scope — see Non-goals).
func stripANSI(s string) string {
	if !strings.ContainsRune(s, 0x1b) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != 0x1b || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		switch s[i+1] {
		case '[': // CSI: ESC [ params... final-byte (0x40-0x7e)
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j - 1
		case ']': // OSC: ESC ] ... (BEL or ESC \)
			j := i + 2
			for j < len(s) && s[j] != 0x07 {
				if s[j] == 0x1b && j+1 < len(s) && s[j+1] == '\\' {
					j++
					break
				}
				j++
			}
			if j < len(s) {
				j++
			}
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
