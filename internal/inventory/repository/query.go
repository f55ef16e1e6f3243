package repository

import (
	"fmt"
	"strings"
)

// filter accumulates WHERE conditions with numbered placeholders.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) add(cond string, arg interface{}) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(cond, len(f.args)))
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (f *filter) page(limit, offset int) (string, []interface{}) {
	if limit <= 0 {
		return "", f.args
	}
	args := append(append([]interface{}{}, f.args...), limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
