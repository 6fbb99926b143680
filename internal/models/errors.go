package models

import "errors"

// Storage sentinels shared by the stores and the services that call them.
var (
	ErrNotFound  = errors.New("not found")
	ErrSlotTaken = errors.New("slot already booked")
)
