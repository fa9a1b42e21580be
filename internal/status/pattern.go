package status

import (
	"regexp"
	"sort"
)

// Activity is the inferred semantic state of a session's output stream.
type Activity string

const (
	Idle    Activity = "idle"
	Working Activity = "working"
	Waiting Activity = "waiting"
	Error   Activity = "error"
)

// Shell scopes a pattern to the kind of backing program it applies to. Empty
// matches every shell kind.
type Shell string

const (
	ShellAny   Shell = ""
	ShellLocal Shell = "local"
	ShellSSH   Shell = "ssh"
)

// Pattern is one registry entry: a compiled regex tested against the tail of
// a session's recent output, paired with the activity it signals.
type Pattern struct {
	ID       string
	Name     string
	Shell    Shell
	Regex    string
	Status   Activity
	Priority int
	Enabled  bool

	compiled *regexp.Regexp
	seq      int // insertion sequence, breaks priority ties
}

// compileSelf validates Regex and caches the compiled form. Returns an error if
// the pattern's regex does not compile — patterns are validated at
// registration time, never at match time.
func (p *Pattern) compileSelf() error {
	re, err := regexp.Compile(p.Regex)
	if err != nil {
		return err
	}
	p.compiled = re
	return nil
}

// registry holds the process-wide, priority-ordered pattern set.
type registry struct {
	patterns []*Pattern
	nextSeq  int
}

func newRegistry() *registry {
	return &registry{}
}

// add compiles and inserts pattern, replacing any existing entry with the
// same ID, then re-sorts by priority descending (ties broken by original
// insertion order).
func (r *registry) add(p Pattern) error {
	if err := p.compileSelf(); err != nil {
		return err
	}
	cp := p

	for i, existing := range r.patterns {
		if existing.ID == cp.ID {
			cp.seq = existing.seq
			r.patterns[i] = &cp
			r.resort()
			return nil
		}
	}

	cp.seq = r.nextSeq
	r.nextSeq++
	r.patterns = append(r.patterns, &cp)
	r.resort()
	return nil
}

func (r *registry) resort() {
	sort.SliceStable(r.patterns, func(i, j int) bool {
		if r.patterns[i].Priority != r.patterns[j].Priority {
			return r.patterns[i].Priority > r.patterns[j].Priority
		}
		return r.patterns[i].seq < r.patterns[j].seq
	})
}

// remove drops the pattern with the given id, reporting whether one existed.
func (r *registry) remove(id string) bool {
	for i, p := range r.patterns {
		if p.ID == id {
			r.patterns = append(r.patterns[:i], r.patterns[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns a copy of the registry's patterns without compiled
// regexes, in priority order.
func (r *registry) snapshot() []Pattern {
	out := make([]Pattern, 0, len(r.patterns))
	for _, p := range r.patterns {
		cp := *p
		cp.compiled = nil
		out = append(out, cp)
	}
	return out
}

// firstMatch returns the highest-priority enabled pattern (scoped to shell,
// or ShellAny) whose regex matches tail, or nil.
func (r *registry) firstMatch(shell Shell, tail string) *Pattern {
	for _, p := range r.patterns {
		if !p.Enabled {
			continue
		}
		if p.Shell != ShellAny && p.Shell != shell {
			continue
		}
		if p.compiled.MatchString(tail) {
			return p
		}
	}
	return nil
}
