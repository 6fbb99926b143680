// Package booking owns the reservation lifecycle: creation with a fresh
// availability check, confirmation, cancellation and the payment return.
package booking

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/models"
	"github.com/codr1/courtbook/internal/payment"
	"github.com/codr1/courtbook/internal/reservations"
	"github.com/codr1/courtbook/internal/schedule"
)

// CancelReasonPaymentFailed is recorded when the gateway reports anything
// other than success.
const CancelReasonPaymentFailed = "payment_failed"

const defaultMaxSlots = 4

type ReservationStore interface {
	// Create inserts rows atomically. It returns models.ErrSlotTaken when any
	// slot is held by a confirmed row or another customer's pending row.
	Create(ctx context.Context, rows []models.Reservation) ([]models.Reservation, error)
	Get(ctx context.Context, id int64) (models.Reservation, error)
	ListGroup(ctx context.Context, groupID string) ([]models.Reservation, error)
	ListByCustomer(ctx context.Context, userID string) ([]models.Reservation, error)
	// SetStatus moves the rows among ids whose status is in from and reports
	// how many changed.
	SetStatus(ctx context.Context, ids []int64, from []models.ReservationStatus, to models.ReservationStatus, reason string) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type SnapshotLoader interface {
	Load(ctx context.Context, date time.Time, courtID int64) (*availability.Snapshot, error)
	CurrentSchedule(ctx context.Context) (schedule.Schedule, error)
}

// Recorder receives lifecycle counts.
type Recorder interface {
	Created(status models.ReservationStatus, n int)
	Transitioned(to models.ReservationStatus, n int)
	Conflict()
}

type nopRecorder struct{}

func (nopRecorder) Created(models.ReservationStatus, int)      {}
func (nopRecorder) Transitioned(models.ReservationStatus, int) {}
func (nopRecorder) Conflict()                                  {}

type Options struct {
	Location    *time.Location
	Courts      []models.Court
	MaxSlots    int
	PhoneRegion string
	Clock       schedule.Clock
	Payments    payment.Provider
	Recorder    Recorder
}

type Service struct {
	store    ReservationStore
	loader   SnapshotLoader
	payments payment.Provider
	clock    schedule.Clock
	recorder Recorder
	loc      *time.Location
	courts   map[int64]struct{}
	maxSlots int
	region   string
}

func NewService(store ReservationStore, loader SnapshotLoader, opts Options) *Service {
	s := &Service{
		store:    store,
		loader:   loader,
		payments: opts.Payments,
		clock:    opts.Clock,
		recorder: opts.Recorder,
		loc:      opts.Location,
		maxSlots: opts.MaxSlots,
		region:   strings.ToUpper(opts.PhoneRegion),
	}
	if s.clock == nil {
		s.clock = schedule.SystemClock{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.maxSlots <= 0 {
		s.maxSlots = defaultMaxSlots
	}
	if s.region == "" {
		s.region = "US"
	}
	if len(opts.Courts) > 0 {
		s.courts = make(map[int64]struct{}, len(opts.Courts))
		for _, court := range opts.Courts {
			s.courts[court.ID] = struct{}{}
		}
	}
	return s
}

type CreateRequest struct {
	CourtID     int64  `json:"courtId"`
	Date        string `json:"date"`
	StartSlot   string `json:"startSlot"`
	Slots       int    `json:"slots"`
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
	UserID      string `json:"userId"`
}

type CreateResult struct {
	Reservations []models.Reservation      `json:"reservations"`
	Group        reservations.BookingGroup `json:"group"`
	Reference    string                    `json:"reference"`
	CheckoutURL  string                    `json:"checkoutUrl,omitempty"`
}

// Create books a pending window for a customer and returns the checkout
// redirect. Availability is re-checked against a freshly loaded snapshot.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	result, err := s.create(ctx, req, models.StatusPending)
	if err != nil {
		return nil, err
	}
	if s.payments == nil {
		return result, nil
	}

	target, err := s.payments.CheckoutURL(ctx, payment.Checkout{
		Reference:   result.Reference,
		CourtID:     result.Group.CourtID,
		Date:        result.Group.Date,
		StartSlot:   result.Group.StartSlot.Label(),
		SlotCount:   result.Group.SlotCount,
		ClientName:  result.Group.ClientName,
		ClientPhone: result.Group.ClientPhone,
	})
	if err != nil {
		// The booking stays pending; the customer can retry payment from their list.
		log.Ctx(ctx).Error().
			Err(err).
			Str("reference", result.Reference).
			Msg("Failed to build checkout url")
		return result, nil
	}
	result.CheckoutURL = target
	return result, nil
}

// ManualRequest is an admin walk-in booking, created confirmed.
type ManualRequest struct {
	CourtID     int64  `json:"courtId"`
	Date        string `json:"date"`
	StartSlot   string `json:"startSlot"`
	Slots       int    `json:"slots"`
	ClientName  string `json:"clientName"`
	ClientPhone string `json:"clientPhone"`
}

func (s *Service) CreateManual(ctx context.Context, req ManualRequest) (*CreateResult, error) {
	return s.create(ctx, CreateRequest{
		CourtID:     req.CourtID,
		Date:        req.Date,
		StartSlot:   req.StartSlot,
		Slots:       req.Slots,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
	}, models.StatusConfirmed)
}

func (s *Service) create(ctx context.Context, req CreateRequest, status models.ReservationStatus) (*CreateResult, error) {
	logger := log.Ctx(ctx)

	name, phone, err := s.validateClient(req.ClientName, req.ClientPhone)
	if err != nil {
		return nil, err
	}
	if req.CourtID <= 0 {
		return nil, &ValidationError{Field: "courtId", Message: "is required"}
	}
	if s.courts != nil {
		if _, ok := s.courts[req.CourtID]; !ok {
			return nil, &ValidationError{Field: "courtId", Message: "unknown court"}
		}
	}
	if req.Slots == 0 {
		req.Slots = 1
	}
	if req.Slots < 0 || req.Slots > s.maxSlots {
		return nil, &ValidationError{Field: "slots", Message: "must be between 1 and " + strconv.Itoa(s.maxSlots)}
	}
	date, err := models.ParseDate(req.Date, s.loc)
	if err != nil {
		return nil, &ValidationError{Field: "date", Message: err.Error()}
	}
	start, err := schedule.ParseSlot(req.StartSlot)
	if err != nil {
		return nil, &ValidationError{Field: "startSlot", Message: err.Error()}
	}

	snap, err := s.loader.Load(ctx, date, req.CourtID)
	if err != nil {
		return nil, err
	}
	window, err := availability.NewEngine(snap, s.clock).ValidateWindow(req.CourtID, start, req.Slots, strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, err
	}

	var groupID string
	if len(window) > 1 {
		groupID = uuid.NewString()
	}
	rows := make([]models.Reservation, 0, len(window))
	for _, slot := range window {
		rows = append(rows, models.Reservation{
			CourtID:     req.CourtID,
			Date:        models.FormatDate(date),
			SlotTime:    slot.Label(),
			ClientName:  name,
			ClientPhone: phone,
			Status:      status,
			GroupID:     groupID,
			UserID:      strings.TrimSpace(req.UserID),
		})
	}

	created, err := s.store.Create(ctx, rows)
	if err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			s.recorder.Conflict()
			logger.Info().
				Int64("court_id", req.CourtID).
				Str("date", models.FormatDate(date)).
				Str("slot", start.Label()).
				Msg("Reservation lost race for slot")
			return nil, s.conflict(ctx, date, req.CourtID, window)
		}
		return nil, &TransportError{Op: "create reservation", Err: err}
	}
	s.recorder.Created(status, len(created))

	groups := reservations.GroupReservations(created, snap.Schedule)
	if len(groups) == 0 {
		return nil, &TransportError{Op: "create reservation", Err: errors.New("store returned no rows")}
	}
	result := &CreateResult{
		Reservations: created,
		Group:        groups[0],
		Reference:    reference(created[0]),
	}

	logger.Info().
		Int64("court_id", req.CourtID).
		Str("date", result.Group.Date).
		Str("slot", start.Label()).
		Int("slot_count", len(created)).
		Str("group_id", groupID).
		Str("status", string(status)).
		Msg("Reservation created")
	return result, nil
}

// conflict reloads availability so the caller is handed current state.
func (s *Service) conflict(ctx context.Context, date time.Time, courtID int64, window []schedule.Slot) error {
	conflict := &SlotConflictError{CourtID: courtID, Date: models.FormatDate(date), Slots: window}
	fresh, err := s.Refresh(ctx, date, courtID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Failed to reload availability after conflict")
		return conflict
	}
	conflict.Fresh = fresh
	return conflict
}

func (s *Service) Refresh(ctx context.Context, date time.Time, courtID int64) (*availability.Snapshot, error) {
	return s.loader.Load(ctx, date, courtID)
}

func (s *Service) validateClient(rawName, rawPhone string) (string, string, error) {
	name := strings.Join(strings.Fields(rawName), " ")
	if name == "" {
		return "", "", &ValidationError{Field: "clientName", Message: "is required"}
	}
	if len(name) > 120 {
		return "", "", &ValidationError{Field: "clientName", Message: "is too long"}
	}
	phone, err := s.NormalizePhone(rawPhone)
	if err != nil {
		return "", "", err
	}
	return name, phone, nil
}

// NormalizePhone returns the E.164 form of a phone number, resolving local
// numbers against the configured region.
func (s *Service) NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ValidationError{Field: "clientPhone", Message: "is required"}
	}
	num, err := phonenumbers.Parse(raw, s.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", &ValidationError{Field: "clientPhone", Message: "is not a valid phone number"}
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Confirm moves a pending booking to confirmed. ref is a reservation id or a
// group id; a row inside a group confirms the whole group.
func (s *Service) Confirm(ctx context.Context, ref string) ([]models.Reservation, error) {
	rows, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	var pending []int64
	live := 0
	for _, row := range rows {
		switch row.Status {
		case models.StatusPending:
			pending = append(pending, row.ID)
			live++
		case models.StatusConfirmed:
			live++
		}
	}
	if live == 0 {
		return nil, ErrInvalidTransition
	}
	if len(pending) == 0 {
		return rows, nil
	}

	changed, err := s.store.SetStatus(ctx, pending, []models.ReservationStatus{models.StatusPending}, models.StatusConfirmed, "")
	if err != nil {
		if errors.Is(err, models.ErrSlotTaken) {
			s.recorder.Conflict()
			return nil, &SlotConflictError{CourtID: rows[0].CourtID, Date: rows[0].Date}
		}
		return nil, &TransportError{Op: "confirm reservation", Err: err}
	}
	s.recorder.Transitioned(models.StatusConfirmed, int(changed))

	log.Ctx(ctx).Info().
		Str("reference", ref).
		Int64("rows", changed).
		Msg("Reservation confirmed")
	return s.resolve(ctx, ref)
}

// Cancel releases a booking. Cancelling an already cancelled booking is a no-op.
func (s *Service) Cancel(ctx context.Context, ref, reason string) ([]models.Reservation, error) {
	rows, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	var live []int64
	for _, row := range rows {
		if row.Status != models.StatusCancelled {
			live = append(live, row.ID)
		}
	}
	if len(live) == 0 {
		return rows, nil
	}

	changed, err := s.store.SetStatus(ctx, live,
		[]models.ReservationStatus{models.StatusPending, models.StatusConfirmed},
		models.StatusCancelled, strings.TrimSpace(reason))
	if err != nil {
		return nil, &TransportError{Op: "cancel reservation", Err: err}
	}
	s.recorder.Transitioned(models.StatusCancelled, int(changed))

	log.Ctx(ctx).Info().
		Str("reference", ref).
		Str("reason", reason).
		Int64("rows", changed).
		Msg("Reservation cancelled")
	return s.resolve(ctx, ref)
}

// CancelOwned is Cancel for a customer acting on their own booking. A booking
// owned by someone else is reported as not found.
func (s *Service) CancelOwned(ctx context.Context, ref, userID, reason string) ([]models.Reservation, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Message: "is required"}
	}
	rows, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.UserID != userID {
			return nil, ErrNotFound
		}
	}
	return s.Cancel(ctx, ref, reason)
}

// HardDelete removes a single row. Admin only.
func (s *Service) HardDelete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrNotFound
		}
		return &TransportError{Op: "delete reservation", Err: err}
	}
	log.Ctx(ctx).Info().Int64("reservation_id", id).Msg("Reservation deleted")
	return nil
}

// HandlePaymentReturn applies the gateway outcome: success confirms the
// booking, anything else releases its pending holds. A failed outcome never
// touches a confirmed booking.
func (s *Service) HandlePaymentReturn(ctx context.Context, rawOutcome, ref string) (payment.Outcome, []models.Reservation, error) {
	outcome, err := payment.ParseOutcome(rawOutcome)
	if err != nil {
		return "", nil, &ValidationError{Field: "outcome", Message: err.Error()}
	}
	var rows []models.Reservation
	if outcome == payment.OutcomeSuccess {
		rows, err = s.Confirm(ctx, ref)
	} else {
		rows, err = s.releasePending(ctx, ref, CancelReasonPaymentFailed)
	}
	return outcome, rows, err
}

// releasePending cancels only the pending members of a booking. A booking
// with confirmed members is left alone and reported as an invalid transition;
// an already released booking is a no-op.
func (s *Service) releasePending(ctx context.Context, ref, reason string) ([]models.Reservation, error) {
	rows, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	var pending []int64
	for _, row := range rows {
		switch row.Status {
		case models.StatusConfirmed:
			return nil, ErrInvalidTransition
		case models.StatusPending:
			pending = append(pending, row.ID)
		}
	}
	if len(pending) == 0 {
		return rows, nil
	}

	changed, err := s.store.SetStatus(ctx, pending,
		[]models.ReservationStatus{models.StatusPending},
		models.StatusCancelled, reason)
	if err != nil {
		return nil, &TransportError{Op: "release reservation", Err: err}
	}
	s.recorder.Transitioned(models.StatusCancelled, int(changed))

	log.Ctx(ctx).Info().
		Str("reference", ref).
		Str("reason", reason).
		Int64("rows", changed).
		Msg("Pending reservation released")
	return s.resolve(ctx, ref)
}

// ListByCustomer returns a customer's bookings, grouped.
func (s *Service) ListByCustomer(ctx context.Context, userID string) ([]reservations.BookingGroup, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "userId", Message: "is required"}
	}
	rows, err := s.store.ListByCustomer(ctx, userID)
	if err != nil {
		return nil, &TransportError{Op: "list customer reservations", Err: err}
	}
	sched, err := s.loader.CurrentSchedule(ctx)
	if err != nil {
		return nil, err
	}
	return reservations.GroupReservations(rows, sched), nil
}

func (s *Service) resolve(ctx context.Context, ref string) ([]models.Reservation, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}

	groupID := ref
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		row, err := s.store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, &TransportError{Op: "get reservation", Err: err}
		}
		if row.GroupID == "" {
			return []models.Reservation{row}, nil
		}
		groupID = row.GroupID
	}

	rows, err := s.store.ListGroup(ctx, groupID)
	if err != nil {
		return nil, &TransportError{Op: "list reservation group", Err: err}
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

// reference is the identifier handed to the payment gateway and back.
func reference(row models.Reservation) string {
	if row.GroupID != "" {
		return row.GroupID
	}
	return strconv.FormatInt(row.ID, 10)
}
