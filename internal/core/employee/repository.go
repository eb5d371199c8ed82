package employee

import "context"

// Repository は社員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByCode(ctx context.Context, employeeCode string) (*Employee, error)
	List(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, string, error)
	// ListAll は集計用に退職者を含む全社員のスナップショットを返します。
	ListAll(ctx context.Context) ([]*Employee, error)
}

// ListEmployeesFilter は一覧取得用フィルタです。
type ListEmployeesFilter struct {
	Status *Status
	Limit  int
	Offset int
}
