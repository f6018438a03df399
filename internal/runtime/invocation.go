package runtime

import (
	"fmt"
	"strconv"
	"strings"
)

// Invocation is one command call as intercepted by a stub.
type Invocation struct {
	Name     string
	Args     string
	Bang     bool
	Range    string
	Count    int
	Mods     string
	Register string
}

// Line renders the invocation as a command line:
//
//	[mods] [range|count] ["reg]name[!] [args]
//
// A range of "0" means no range and is dropped. The count is rendered only
// when there is no range.
func (inv Invocation) Line() string {
	var parts []string
	if mods := strings.TrimSpace(inv.Mods); mods != "" {
		parts = append(parts, mods)
	}
	rng := strings.TrimSpace(inv.Range)
	if rng == "0" {
		rng = ""
	}
	switch {
	case rng != "":
		parts = append(parts, rng)
	case inv.Count > 0:
		parts = append(parts, strconv.Itoa(inv.Count))
	}

	cmd := inv.Name
	if inv.Bang {
		cmd += "!"
	}
	if inv.Register != "" {
		cmd = `"` + inv.Register + cmd
	}
	parts = append(parts, cmd)

	if inv.Args != "" {
		parts = append(parts, inv.Args)
	}
	return strings.Join(parts, " ")
}

// commandModifiers are the words accepted before a command name.
var commandModifiers = map[string]bool{
	"aboveleft": true, "belowright": true, "botright": true, "browse": true,
	"confirm": true, "hide": true, "horizontal": true, "keepalt": true,
	"keepjumps": true, "keepmarks": true, "keeppatterns": true, "leftabove": true,
	"lockmarks": true, "noautocmd": true, "noswapfile": true, "rightbelow": true,
	"sandbox": true, "silent": true, "silent!": true, "tab": true,
	"topleft": true, "unsilent": true, "verbose": true, "vertical": true,
}

// ParseLine parses a command line produced by Line or typed by a user.
// A bare number before the name is read as a count, anything else made of
// range characters as a range.
func ParseLine(line string) (Invocation, error) {
	var inv Invocation
	rest := strings.TrimSpace(line)
	var mods []string
	for {
		word, tail, _ := strings.Cut(rest, " ")
		if !commandModifiers[word] {
			break
		}
		mods = append(mods, word)
		rest = strings.TrimLeft(tail, " ")
	}
	inv.Mods = strings.Join(mods, " ")

	if word, tail, ok := strings.Cut(rest, " "); ok && isRange(word) {
		if n, err := strconv.Atoi(word); err == nil {
			inv.Count = n
		} else {
			inv.Range = word
		}
		rest = strings.TrimLeft(tail, " ")
	}

	if strings.HasPrefix(rest, `"`) {
		if len(rest) < 3 {
			return Invocation{}, fmt.Errorf("%w: %q", ErrInvalidCommandLine, line)
		}
		inv.Register = rest[1:2]
		rest = rest[2:]
	}

	end := 0
	for end < len(rest) && isNameChar(rest[end]) {
		end++
	}
	if end == 0 {
		return Invocation{}, fmt.Errorf("%w: %q", ErrInvalidCommandLine, line)
	}
	inv.Name = rest[:end]
	rest = rest[end:]
	if strings.HasPrefix(rest, "!") {
		inv.Bang = true
		rest = rest[1:]
	}
	if rest != "" && rest[0] != ' ' {
		return Invocation{}, fmt.Errorf("%w: %q", ErrInvalidCommandLine, line)
	}
	inv.Args = strings.TrimLeft(rest, " ")
	return inv, nil
}

func isRange(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if !strings.ContainsRune("0123456789.,;$%'<>+-", rune(word[i])) {
			return false
		}
	}
	return true
}

func isNameChar(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
