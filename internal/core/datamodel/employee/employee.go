package employee

import "time"

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusResigned Status = "resigned"
)

type Employee struct {
	ID           int64     `gorm:"primaryKey"`
	PublicID     string    `gorm:"column:public_id;uniqueIndex;not null"`
	EmployeeNo   string    `gorm:"column:employee_no;uniqueIndex;not null"`
	DepartmentID int64     `gorm:"column:department_id;not null;index"`
	Position     string    `gorm:"column:position"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name"`
	Email        string    `gorm:"column:email"`
	Phone        string    `gorm:"column:phone"`
	Status       Status    `gorm:"column:status;default:'active';index"`
	CreatedAt    time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `gorm:"column:updated_at;default:now()"`
}

func (Employee) TableName() string {
	return "employees"
}

func (e *Employee) IsActive() bool {
	return e.Status == StatusActive
}

func (e *Employee) FullName() string {
	if e.LastName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.LastName
}
