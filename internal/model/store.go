package model

import "time"

type Store struct {
	ID             int64  `db:"store_id"`
	Address        string `db:"address"`
	City           string `db:"city"`
	State          string `db:"state"`
	Zipcode        string `db:"zipcode"`
	OperatingHours string `db:"operating_hours"`
	ManagerID      *int64 `db:"manager_id"` // derived after the employee load
}

const RoleStoreManager = "Store Manager"

type Department struct {
	ID   int64  `db:"department_id"`
	Name string `db:"department_name"`
}

type Employee struct {
	ID           int64  `db:"employee_id"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	Email        string `db:"email"`
	Phone        string `db:"phone"`
	Role         string `db:"role"`
	StoreID      int64  `db:"store_id"`
	DepartmentID int64  `db:"department_id"`
}

type ShiftSchedule struct {
	ID         int64     `db:"schedule_id"`
	EmployeeID int64     `db:"employee_id"`
	ShiftDate  time.Time `db:"shift_date"`
	StartTime  string    `db:"start_time"` // HH:MM:SS
	EndTime    string    `db:"end_time"`
}
