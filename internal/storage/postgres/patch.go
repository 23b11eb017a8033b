package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"estate_tracker/internal/domain"
)

// patchable maps each table to the columns a patch may set. Column names only
// ever come from this set; values always travel as parameters.
var patchable = func() map[domain.Table]map[domain.Field]bool {
	m := map[domain.Table]map[domain.Field]bool{
		domain.TableListings:   {},
		domain.TableProperties: {},
	}
	for _, f := range domain.TrackedFields {
		m[f.Table()][f] = true
	}
	return m
}()

var patchKeys = map[domain.Table]string{
	domain.TableListings:   "id",
	domain.TableProperties: "listing_id",
}

// patch builds a parameterized UPDATE for the changed fields of one row.
type patch struct {
	table domain.Table
	cols  []string
	args  []any
	seen  map[domain.Field]bool
}

func newPatch(table domain.Table) *patch {
	return &patch{table: table, seen: make(map[domain.Field]bool)}
}

func (p *patch) Set(f domain.Field, value any) error {
	if !patchable[p.table][f] {
		return fmt.Errorf("field %q is not a column of %s", f, p.table)
	}
	if p.seen[f] {
		return fmt.Errorf("field %q set twice", f)
	}
	p.seen[f] = true
	p.cols = append(p.cols, string(f))
	p.args = append(p.args, value)
	return nil
}

func (p *patch) Empty() bool {
	return len(p.cols) == 0
}

// Build returns the statement and its arguments; key is bound last.
func (p *patch) Build(key any) (string, []any) {
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(string(p.table))
	sb.WriteString(" SET updated_at = NOW()")
	for i, col := range p.cols {
		sb.WriteString(", ")
		sb.WriteString(col)
		sb.WriteString(" = $")
		sb.WriteString(strconv.Itoa(i + 1))
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(patchKeys[p.table])
	sb.WriteString(" = $")
	sb.WriteString(strconv.Itoa(len(p.cols) + 1))

	args := make([]any, 0, len(p.args)+1)
	args = append(args, p.args...)
	args = append(args, key)
	return sb.String(), args
}

func buildChangePatch(table domain.Table, changes []domain.ListingChange) (*patch, error) {
	p := newPatch(table)
	for _, c := range changes {
		if err := p.Set(c.Field, c.AppliedValue()); err != nil {
			return nil, err
		}
	}
	return p, nil
}
