package model

import "time"

// Period is a single time bucket within a Calendar level (spec §3).
type Period struct {
	Identifier string
	Level      string
	Start      time.Time
	End        time.Time // half-open: [Start, End)
	ParentID   string
}

// CalendarLevel is one rung of a Calendar's hierarchy (e.g. year, quarter,
// month), ordered outermost-first in Calendar.Levels.
type CalendarLevel struct {
	Name              string
	IdentifierPattern string // e.g. "{{YYYY}}-Q{{QQ}}"
}

// Calendar defines an ordered level hierarchy and the periods within it
// (spec §3 "Calendar / Period").
type Calendar struct {
	ID     string
	Levels []CalendarLevel // index 0 is the coarsest level (e.g. "year")
	// Periods indexes every known period by (level, identifier).
	Periods map[string]map[string]Period
	// Children maps a parent period's (level, identifier) to the ordered
	// list of child-level identifiers, in calendar-defined order
	// (spec §4.3 step 3, "enumerating child periods in calendar-defined
	// order").
	Children map[string]map[string][]string
}

// LevelIndex returns the 0-based index of level in the hierarchy, or -1.
func (c Calendar) LevelIndex(level string) int {
	for i, l := range c.Levels {
		if l.Name == level {
			return i
		}
	}
	return -1
}

// Lookup returns the Period for (level, identifier).
func (c Calendar) Lookup(level, identifier string) (Period, bool) {
	byID, ok := c.Periods[level]
	if !ok {
		return Period{}, false
	}
	p, ok := byID[identifier]
	return p, ok
}

// ChildIdentifiers returns the ordered child identifiers of (level,
// identifier) at the next level down, or nil if there are none.
func (c Calendar) ChildIdentifiers(level, identifier string) []string {
	byID, ok := c.Children[level]
	if !ok {
		return nil
	}
	return byID[identifier]
}

// Expand enumerates every period at targetLevel descended from
// (fromLevel, fromIdentifier), in calendar-defined order, by repeated
// child traversal (spec §4.3 step 3). Returns false if no hierarchy path
// exists (fromLevel is not an ancestor level of targetLevel, or the
// traversal yields nothing).
func (c Calendar) Expand(fromLevel, fromIdentifier, targetLevel string) ([]Period, bool) {
	fi, ti := c.LevelIndex(fromLevel), c.LevelIndex(targetLevel)
	if fi < 0 || ti < 0 || ti < fi {
		return nil, false
	}
	if fi == ti {
		p, ok := c.Lookup(fromLevel, fromIdentifier)
		if !ok {
			return nil, false
		}
		return []Period{p}, true
	}

	frontier := []string{fromIdentifier}
	curLevel := fromLevel
	for li := fi; li < ti; li++ {
		nextLevel := c.Levels[li+1].Name
		var next []string
		for _, id := range frontier {
			next = append(next, c.ChildIdentifiers(curLevel, id)...)
		}
		if len(next) == 0 {
			return nil, false
		}
		frontier = next
		curLevel = nextLevel
	}

	out := make([]Period, 0, len(frontier))
	for _, id := range frontier {
		p, ok := c.Lookup(targetLevel, id)
		if !ok {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}
