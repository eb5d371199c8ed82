package compliance

import "errors"

var (
	ErrInvalidFiscalYear       = errors.New("compliance: invalid fiscal year")
	ErrInvalidMonth            = errors.New("compliance: invalid month")
	ErrPeriodLocked            = errors.New("compliance: period locked")
	ErrInvalidStatus           = errors.New("compliance: invalid status")
	ErrInvalidStatusTransition = errors.New("compliance: invalid status transition")
	ErrStatusMismatch          = errors.New("compliance: status mismatch")
	ErrInvalidTarget           = errors.New("compliance: invalid target")
	ErrMonthlyTotalNotFound    = errors.New("compliance: monthly total not found")
	ErrFilingNotFound          = errors.New("compliance: filing not found")
	ErrInvalidLevyInput        = errors.New("compliance: invalid levy input")
	ErrInvalidRoundingMode     = errors.New("compliance: invalid rounding mode")
	ErrConcurrentUpdate        = errors.New("compliance: concurrent update")
)
