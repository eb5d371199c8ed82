package attendance

import "context"

// Repository は勤怠永続化の抽象です。
type Repository interface {
	// Save は (社員, 年度, 月) をキーに登録または更新します。
	Save(ctx context.Context, record *Record) (*Record, error)
	// CreateMissing は未登録の月のみ作成し、作成件数を返します。
	CreateMissing(ctx context.Context, records []*Record) (int, error)
	ListByFiscalYear(ctx context.Context, fiscalYear int) ([]*Record, error)
	ListByEmployee(ctx context.Context, employeeID string, fiscalYear int) ([]*Record, error)
}
