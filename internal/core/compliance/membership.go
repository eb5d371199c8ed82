package compliance

import "github.com/ogurasousui/levy-engine/internal/core/employee"

// CountsInPeriod は社員が対象月の常用労働者数に含まれるかを判定します。
// 退職者は退職した月まで含めます。比較は (年, 月) 単位で、日付は見ません。
// 退職日が未設定の退職者は在籍として扱います。
func CountsInPeriod(e *employee.Employee, p Period) bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case employee.StatusActive:
		return true
	case employee.StatusResigned:
		if e.ResignedAt == nil {
			return true
		}
		r := e.ResignedAt
		return monthOrdinal(r.Year(), int(r.Month())) >= p.ordinal()
	default:
		return false
	}
}
