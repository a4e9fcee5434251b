package services

import (
	"fmt"
	"slices"

	"gorm.io/gorm"
)

// queryChunkSize bounds the number of IDs bound into one IN clause.
const queryChunkSize = 500

// entityResult is the outcome of processing one entity in a batch run.
type entityResult[T any] struct {
	ID    string
	Value T
	Err   error
}

// runEntity runs fn for a single entity. A panic becomes the entity's error
// so one malformed row cannot take down the batch.
func runEntity[T any](id string, fn func() (T, error)) (res entityResult[T]) {
	res.ID = id
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic processing %s: %v", id, r)
		}
	}()
	res.Value, res.Err = fn()
	return res
}

// findIn loads rows whose column is in ids, one query per chunk. Conditions
// already set on db apply to every chunk.
func findIn[T any](db *gorm.DB, column string, ids []string) ([]T, error) {
	var out []T
	for chunk := range slices.Chunk(ids, queryChunkSize) {
		var rows []T
		if err := db.Session(&gorm.Session{}).Where(column+" IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
