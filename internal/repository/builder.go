package repository

import (
	sq "github.com/Masterminds/squirrel"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// psql builds Postgres statements with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func pageWindow(page, size int) (limit, offset uint64) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return uint64(size), uint64((page - 1) * size)
}
