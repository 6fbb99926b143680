package testutil

import (
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/payment"
)

const (
	TestCheckoutURL = "https://pay.example.com/checkout"
	TestReturnURL   = "https://club.example.com/api/v1/payments/return"
)

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }

// Fixture is a fully wired booking stack over a temporary database.
type Fixture struct {
	DB           *db.DB
	Reservations *db.ReservationStore
	Blocks       *db.BlockStore
	Recurring    *db.RecurringBlockStore
	ClubConfig   *db.ClubConfigStore
	Loader       *availability.Loader
	Booking      *booking.Service
	Courts       []models.Court
	Clock        FixedClock
	Location     *time.Location
}

// NewFixture wires stores, loader and booking service for a club open
// 14:00 to midnight with two courts, frozen at now (UTC).
func NewFixture(t *testing.T, now time.Time) *Fixture {
	t.Helper()

	database := NewTestDB(t)
	f := &Fixture{
		DB:           database,
		Reservations: db.NewReservationStore(database),
		Blocks:       db.NewBlockStore(database),
		Recurring:    db.NewRecurringBlockStore(database),
		ClubConfig:   db.NewClubConfigStore(database),
		Courts:       []models.Court{{ID: 1, Label: "Court 1"}, {ID: 2, Label: "Court 2"}},
		Clock:        FixedClock(now),
		Location:     time.UTC,
	}
	f.Loader = &availability.Loader{
		Schedules:    f.ClubConfig,
		Reservations: f.Reservations,
		Blocks:       f.Blocks,
		Recurring:    f.Recurring,
		Defaults:     models.ClubSchedule{OpenTime: "14:00", CloseTime: "00:00", SlotMinutes: 60},
		Clock:        f.Clock,
	}

	checkout, err := payment.NewHostedCheckout(TestCheckoutURL, TestReturnURL)
	if err != nil {
		t.Fatalf("hosted checkout: %v", err)
	}
	f.Booking = booking.NewService(f.Reservations, f.Loader, booking.Options{
		Location: f.Location,
		Courts:   f.Courts,
		MaxSlots: 3,
		Clock:    f.Clock,
		Payments: checkout,
	})
	return f
}
