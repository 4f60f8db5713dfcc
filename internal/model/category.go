package model

type Category struct {
	ID   int64  `db:"category_id"`
	Name string `db:"category_name"`
}
