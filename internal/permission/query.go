package permission

import "gorm.io/gorm"

// Query is the narrow slice of a query builder the scope resolver needs. The
// engine only ever narrows a query; constructing and executing it stays with
// the caller.
type Query interface {
	Where(condition string, args ...interface{}) Query
	// MatchNone collapses the query so it returns no rows; it is how an empty
	// department scope fails closed.
	MatchNone() Query
}

// GormQuery adapts a *gorm.DB to the Query interface.
type GormQuery struct {
	db *gorm.DB
}

func NewGormQuery(db *gorm.DB) GormQuery {
	return GormQuery{db: db}
}

func (q GormQuery) Where(condition string, args ...interface{}) Query {
	return GormQuery{db: q.db.Where(condition, args...)}
}

func (q GormQuery) MatchNone() Query {
	return GormQuery{db: q.db.Where("1 = 0")}
}

// Unwrap returns the underlying gorm handle for execution.
func (q GormQuery) Unwrap() *gorm.DB {
	return q.db
}
