package payments

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/payment"
	"github.com/codr1/courtbook/internal/testutil"
)

func setupPaymentsTest(t *testing.T) (*testutil.Fixture, string) {
	t.Helper()

	f := testutil.NewFixture(t, time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC))
	result, err := f.Booking.Create(context.Background(), booking.CreateRequest{
		CourtID:     1,
		Date:        "2026-10-14",
		StartSlot:   "19:00",
		Slots:       2,
		ClientName:  "Ana",
		ClientPhone: "+1 650-253-0000",
		UserID:      "cust-1",
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	service = nil
	serviceOnce = sync.Once{}
	InitHandlers(f.Booking)

	t.Cleanup(func() {
		service = nil
		serviceOnce = sync.Once{}
	})

	return f, result.Reference
}

func paymentReturn(t *testing.T, outcome, ref string) (*httptest.ResponseRecorder, returnResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?outcome="+outcome+"&reference="+ref, nil)
	rec := httptest.NewRecorder()
	HandlePaymentReturn(rec, req)

	var resp returnResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return rec, resp
}

func TestHandlePaymentReturn_SuccessConfirms(t *testing.T) {
	_, ref := setupPaymentsTest(t)

	rec, resp := paymentReturn(t, "approved", ref)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Outcome != payment.OutcomeSuccess || resp.Status != models.StatusConfirmed || len(resp.Reservations) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandlePaymentReturn_FailureReleasesSlots(t *testing.T) {
	f, ref := setupPaymentsTest(t)

	rec, resp := paymentReturn(t, "rejected", ref)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Status != models.StatusCancelled || resp.Reservations[0].CancelReason != booking.CancelReasonPaymentFailed {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// Another customer can now book the released window.
	if _, err := f.Booking.Create(context.Background(), booking.CreateRequest{
		CourtID:     1,
		Date:        "2026-10-14",
		StartSlot:   "19:00",
		Slots:       2,
		ClientName:  "Bruno",
		ClientPhone: "+1 650-253-0000",
		UserID:      "cust-2",
	}); err != nil {
		t.Fatalf("rebook released window: %v", err)
	}

	// Replaying a success for the cancelled booking is refused.
	rec, _ = paymentReturn(t, "success", ref)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandlePaymentReturn_LateFailureKeepsConfirmed(t *testing.T) {
	f, ref := setupPaymentsTest(t)

	if rec, _ := paymentReturn(t, "success", ref); rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ := paymentReturn(t, "pending", ref)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	rows, err := f.Reservations.ListGroup(context.Background(), ref)
	if err != nil {
		t.Fatalf("list group: %v", err)
	}
	for _, row := range rows {
		if row.Status != models.StatusConfirmed {
			t.Fatalf("slot %s status = %s, want confirmed", row.SlotTime, row.Status)
		}
	}
}

func TestHandlePaymentReturn_BadInput(t *testing.T) {
	_, ref := setupPaymentsTest(t)

	tests := []struct {
		name    string
		outcome string
		ref     string
		status  int
	}{
		{name: "unknown outcome", outcome: "maybe", ref: ref, status: http.StatusBadRequest},
		{name: "missing reference", outcome: "success", ref: "", status: http.StatusBadRequest},
		{name: "unknown reference", outcome: "success", ref: "no-such-group", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := paymentReturn(t, tt.outcome, tt.ref)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}
