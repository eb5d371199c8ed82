package employee

import "errors"

var (
	ErrInvalidID                 = errors.New("employee: invalid id")
	ErrInvalidEmployeeCode       = errors.New("employee: invalid employee code")
	ErrInvalidName               = errors.New("employee: invalid name")
	ErrInvalidStatus             = errors.New("employee: invalid status")
	ErrInvalidCountWeight        = errors.New("employee: invalid count weight")
	ErrInvalidPageSize           = errors.New("employee: invalid page size")
	ErrInvalidPageToken          = errors.New("employee: invalid page token")
	ErrInvalidDateRange          = errors.New("employee: invalid employment period")
	ErrAlreadyResigned           = errors.New("employee: already resigned")
	ErrEmployeeNotFound          = errors.New("employee: not found")
	ErrEmployeeCodeAlreadyExists = errors.New("employee: employee code already exists")
)
