package report

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Change summarizes how a body was edited.
type Change struct {
	Inserted int // runes added
	Deleted  int // runes removed
	Hunks    int // contiguous edited regions
}

func (c Change) String() string {
	return fmt.Sprintf("+%d -%d in %d hunk(s)", c.Inserted, c.Deleted, c.Hunks)
}

// DescribeChange diffs two versions of a body.
func DescribeChange(before, after string) Change {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))

	var (
		c      Change
		inHunk bool
	)
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			c.Inserted += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			c.Deleted += len([]rune(d.Text))
		case diffmatchpatch.DiffEqual:
			inHunk = false
			continue
		}
		if !inHunk {
			c.Hunks++
			inHunk = true
		}
	}
	return c
}
