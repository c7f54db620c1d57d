package models

import "time"

// Label is a stored shipping label PDF, downloadable from the server.
type Label struct {
	ID        int64     `db:"id"`
	OrderID   int64     `db:"order_id"`
	Barcode   string    `db:"barcode"`
	Filename  string    `db:"filename"`
	Content   []byte    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}
