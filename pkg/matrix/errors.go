package matrix

import "errors"

var (
	// ErrShape is returned when values do not match the declared ids.
	ErrShape = errors.New("matrix: values do not match shape")

	// ErrDuplicateID is returned when a row or column id appears twice.
	ErrDuplicateID = errors.New("matrix: duplicate id")

	// ErrNaNInf is returned when a value is NaN or ±Inf.
	ErrNaNInf = errors.New("matrix: NaN or Inf encountered")
)
