package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/levy-engine/internal/core/attendance"
	"github.com/ogurasousui/levy-engine/internal/core/compliance"
	"github.com/ogurasousui/levy-engine/internal/core/employee"
	"github.com/ogurasousui/levy-engine/internal/core/settings"
)

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, compliance.ErrInvalidFiscalYear),
		errors.Is(err, compliance.ErrInvalidMonth),
		errors.Is(err, compliance.ErrInvalidStatus),
		errors.Is(err, compliance.ErrInvalidTarget),
		errors.Is(err, compliance.ErrInvalidLevyInput),
		errors.Is(err, compliance.ErrInvalidRoundingMode),
		errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidEmployeeCode),
		errors.Is(err, employee.ErrInvalidName),
		errors.Is(err, employee.ErrInvalidStatus),
		errors.Is(err, employee.ErrInvalidCountWeight),
		errors.Is(err, employee.ErrInvalidPageSize),
		errors.Is(err, employee.ErrInvalidPageToken),
		errors.Is(err, employee.ErrInvalidDateRange),
		errors.Is(err, attendance.ErrInvalidEmployeeID),
		errors.Is(err, attendance.ErrInvalidFiscalYear),
		errors.Is(err, attendance.ErrInvalidMonth),
		errors.Is(err, attendance.ErrInvalidHours),
		errors.Is(err, settings.ErrInvalidLegalRate),
		errors.Is(err, settings.ErrInvalidRounding),
		errors.Is(err, settings.ErrInvalidUnitPrice),
		errors.Is(err, settings.ErrInvalidDivisor):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, compliance.ErrPeriodLocked),
		errors.Is(err, compliance.ErrInvalidStatusTransition),
		errors.Is(err, compliance.ErrStatusMismatch),
		errors.Is(err, employee.ErrAlreadyResigned):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, employee.ErrEmployeeCodeAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, compliance.ErrMonthlyTotalNotFound),
		errors.Is(err, compliance.ErrFilingNotFound),
		errors.Is(err, employee.ErrEmployeeNotFound),
		errors.Is(err, attendance.ErrEmployeeNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, compliance.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
