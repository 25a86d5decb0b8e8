// Package tenant keeps clinic data isolated at the gorm layer.
//
// Repositories always filter by clinic themselves; the Guard plugin is the
// backstop. Once registered it fails any SELECT, UPDATE or DELETE on a
// clinic-owned table whose WHERE clause does not constrain the clinic
// column, and any INSERT whose rows carry a zero clinic id:
//
//	db.Use(tenant.NewGuard("clinic_id", "patients", "reports"))
//	db.Find(&reports)                               // ErrUnscopedStatement
//	db.Where("clinic_id = ?", id).Find(&reports)    // ok
//	db.Unscoped().Table("reports").Count(&n)        // ok, explicit opt-out
//
// Raw SQL and row scans are not inspected.
package tenant

import (
	"errors"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnscopedStatement is returned for a statement on a clinic-owned table
// that could touch rows of every clinic.
var ErrUnscopedStatement = errors.New("statement on a clinic-owned table has no clinic condition")

// ErrMissingClinic is returned when a row is inserted without a clinic id.
var ErrMissingClinic = errors.New("clinic-owned row has no clinic id")

// DefaultColumn is the tenant column of every clinic-owned table
const DefaultColumn = "clinic_id"

// Guard is a gorm plugin enforcing clinic scoping
type Guard struct {
	column string
	tables map[string]bool
}

// NewGuard guards tables on column; an empty column means DefaultColumn.
func NewGuard(column string, tables ...string) *Guard {
	if column == "" {
		column = DefaultColumn
	}
	g := &Guard{column: column, tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		g.tables[t] = true
	}
	return g
}

// Name implements gorm.Plugin
func (g *Guard) Name() string {
	return "clinic-reports:tenant-guard"
}

// Initialize implements gorm.Plugin
func (g *Guard) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Query().Before("gorm:query").Register("tenant:guard_query", g.requireCondition),
		cb.Update().Before("gorm:update").Register("tenant:guard_update", g.requireCondition),
		cb.Delete().Before("gorm:delete").Register("tenant:guard_delete", g.requireCondition),
		cb.Create().Before("gorm:create").Register("tenant:guard_create", g.requireClinicID),
	)
}

// Tables returns the guarded table names
func (g *Guard) Tables() []string {
	out := make([]string, 0, len(g.tables))
	for t := range g.tables {
		out = append(out, t)
	}
	return out
}

func (g *Guard) applies(db *gorm.DB) bool {
	stmt := db.Statement
	if db.Error != nil || stmt.Unscoped || stmt.SQL.Len() > 0 {
		return false
	}
	return g.tables[stmt.Table]
}

func (g *Guard) requireCondition(db *gorm.DB) {
	if !g.applies(db) {
		return
	}
	c, ok := db.Statement.Clauses["WHERE"]
	if ok {
		if where, isWhere := c.Expression.(clause.Where); isWhere && g.anyScoped(where.Exprs) {
			return
		}
	}
	_ = db.AddError(ErrUnscopedStatement)
}

// anyScoped reports whether one of the AND-ed expressions pins the clinic.
// A condition inside an OR does not count: the other branch escapes it.
func (g *Guard) anyScoped(exprs []clause.Expression) bool {
	for _, expr := range exprs {
		switch e := expr.(type) {
		case clause.Eq:
			if g.isColumn(e.Column) {
				return true
			}
		case clause.IN:
			if g.isColumn(e.Column) {
				return true
			}
		case clause.AndConditions:
			if g.anyScoped(e.Exprs) {
				return true
			}
		case clause.Expr:
			if g.mentions(e.SQL) {
				return true
			}
		case clause.NamedExpr:
			if g.mentions(e.SQL) {
				return true
			}
		}
	}
	return false
}

func (g *Guard) isColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return c == g.column || strings.HasSuffix(c, "."+g.column)
	case clause.Column:
		return c.Name == g.column
	}
	return false
}

// mentions matches string conditions such as "clinic_id = ?". An OR in the
// same fragment disqualifies it.
func (g *Guard) mentions(sql string) bool {
	lower := strings.ToLower(sql)
	return strings.Contains(lower, g.column) && !strings.Contains(lower, " or ")
}

func (g *Guard) requireClinicID(db *gorm.DB) {
	if !g.applies(db) || db.Statement.Schema == nil {
		return
	}
	field := db.Statement.Schema.LookUpField(g.column)
	if field == nil {
		return
	}

	ctx := db.Statement.Context
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if _, zero := field.ValueOf(ctx, reflect.Indirect(rv.Index(i))); zero {
				_ = db.AddError(ErrMissingClinic)
				return
			}
		}
	case reflect.Struct:
		if _, zero := field.ValueOf(ctx, rv); zero {
			_ = db.AddError(ErrMissingClinic)
		}
	}
}
