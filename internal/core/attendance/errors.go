package attendance

import "errors"

var (
	ErrInvalidEmployeeID = errors.New("attendance: invalid employee id")
	ErrInvalidFiscalYear = errors.New("attendance: invalid fiscal year")
	ErrInvalidMonth      = errors.New("attendance: invalid month")
	ErrInvalidHours      = errors.New("attendance: invalid hours")
	ErrEmployeeNotFound  = errors.New("attendance: employee not found")
)
