//go:build unit

package commands_test

import (
	"context"
	"fmt"
	"time"

	"expertbooking/internal/domain/meeting"
	"expertbooking/internal/domain/reservation"
	"expertbooking/internal/infra"
	"expertbooking/internal/infra/db"
	"expertbooking/internal/infra/idempotency"
	"expertbooking/internal/infra/repository"
	"expertbooking/internal/usecase/shared"

	"github.com/google/uuid"
)

func slotKey(expertID uuid.UUID, startAt time.Time) string {
	return expertID.String() + "|" + startAt.UTC().Format(time.RFC3339)
}

func notFoundErr(msg string) error {
	return infra.WrapRepoErr(msg, nil, infra.KindNotFound)
}

func duplicateErr(msg string) error {
	return infra.WrapRepoErr(msg, nil, infra.KindDuplicateKey)
}

// ---- unit of work ----

type fakeTx struct {
	reservations *fakeReservationRepo
	meetings     *fakeMeetingRepo
	sessions     *fakeSessionRepo
	events       *fakeEventRepo
}

func newFakeTx() *fakeTx {
	return &fakeTx{
		reservations: newFakeReservationRepo(),
		meetings:     newFakeMeetingRepo(),
		sessions:     newFakeSessionRepo(),
		events:       newFakeEventRepo(),
	}
}

func (t *fakeTx) Reservations() shared.ReservationRepository   { return t.reservations }
func (t *fakeTx) Meetings() shared.MeetingRepository           { return t.meetings }
func (t *fakeTx) Sessions() shared.SessionRepository           { return t.sessions }
func (t *fakeTx) WebhookEvents() shared.WebhookEventRepository { return t.events }
func (t *fakeTx) DB() db.DBTX                                  { return nil }

type fakeUoW struct {
	tx *fakeTx
}

func (u *fakeUoW) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	return fn(ctx, u.tx)
}

func (u *fakeUoW) WithDB(ctx context.Context, fn func(ctx context.Context, dbtx db.DBTX) error) error {
	return fn(ctx, nil)
}

// ---- reservations ----

type fakeReservationRepo struct {
	bySlot map[string]*reservation.Reservation
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{bySlot: make(map[string]*reservation.Reservation)}
}

func (r *fakeReservationRepo) TryReserve(_ context.Context, _ db.DBTX, res *reservation.Reservation, now time.Time) (*reservation.Reservation, error) {
	key := slotKey(res.Slot().ExpertID(), res.Slot().StartAt())
	if existing, ok := r.bySlot[key]; ok {
		if existing.Status() == reservation.StatusHeld && existing.IsExpired(now) {
			delete(r.bySlot, key)
		} else if existing.HeldBy(res.Holder()) {
			return existing, nil
		} else {
			return nil, duplicateErr("slot taken")
		}
	}
	r.bySlot[key] = res
	return res, nil
}

func (r *fakeReservationRepo) ConfirmBySession(_ context.Context, _ db.DBTX, sessionID string) error {
	for _, res := range r.bySlot {
		if sid := res.PaymentSessionID(); sid != nil && *sid == sessionID && res.Status() == reservation.StatusHeld {
			if err := res.Confirm(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *fakeReservationRepo) Release(_ context.Context, _ db.DBTX, id uuid.UUID) error {
	for key, res := range r.bySlot {
		if res.ID() == id {
			delete(r.bySlot, key)
			return nil
		}
	}
	return nil
}

func (r *fakeReservationRepo) ReleaseBySession(_ context.Context, _ db.DBTX, sessionID string) error {
	for key, res := range r.bySlot {
		if sid := res.PaymentSessionID(); sid != nil && *sid == sessionID {
			delete(r.bySlot, key)
		}
	}
	return nil
}

func (r *fakeReservationRepo) AttachSession(_ context.Context, _ db.DBTX, id uuid.UUID, sessionID string) error {
	for key, res := range r.bySlot {
		if res.ID() == id {
			r.bySlot[key] = reservation.Reconstruct(
				res.ID(), res.Slot(), res.Holder(), res.Status(), &sessionID,
				res.ExpiresAt(), res.CreatedAt(), res.UpdatedAt())
			return nil
		}
	}
	return notFoundErr("reservation not found")
}

func (r *fakeReservationRepo) ReleaseExpired(_ context.Context, _ db.DBTX, now time.Time) ([]repository.ReleasedHold, error) {
	var released []repository.ReleasedHold
	for key, res := range r.bySlot {
		if res.Status() == reservation.StatusHeld && res.IsExpired(now) {
			released = append(released, repository.ReleasedHold{
				ID:          res.ID(),
				ExpertID:    res.Slot().ExpertID(),
				HolderID:    res.Holder().ID,
				HolderEmail: res.Holder().Email,
				StartAt:     res.Slot().StartAt(),
			})
			delete(r.bySlot, key)
		}
	}
	return released, nil
}

func (r *fakeReservationRepo) FindLiveBySlot(_ context.Context, _ db.DBTX, expertID uuid.UUID, startAt, now time.Time) (*reservation.Reservation, error) {
	res, ok := r.bySlot[slotKey(expertID, startAt)]
	if !ok || (res.Status() == reservation.StatusHeld && res.IsExpired(now)) {
		return nil, notFoundErr("no live reservation")
	}
	return res, nil
}

func (r *fakeReservationRepo) FindBySession(_ context.Context, _ db.DBTX, sessionID string) (*reservation.Reservation, error) {
	for _, res := range r.bySlot {
		if sid := res.PaymentSessionID(); sid != nil && *sid == sessionID {
			return res, nil
		}
	}
	return nil, notFoundErr("reservation not found")
}

// ---- meetings ----

type fakeMeetingRepo struct {
	bySession map[string]*meeting.Meeting
}

func newFakeMeetingRepo() *fakeMeetingRepo {
	return &fakeMeetingRepo{bySession: make(map[string]*meeting.Meeting)}
}

func (r *fakeMeetingRepo) CreateIfAbsent(_ context.Context, _ db.DBTX, m *meeting.Meeting) (*meeting.Meeting, bool, error) {
	if existing, ok := r.bySession[m.PaymentSessionID()]; ok {
		return existing, false, nil
	}
	for _, existing := range r.bySession {
		if existing.Slot().Equal(m.Slot()) {
			return nil, false, duplicateErr("slot already booked")
		}
	}
	r.bySession[m.PaymentSessionID()] = m
	return m, true, nil
}

func (r *fakeMeetingRepo) FindBySession(_ context.Context, _ db.DBTX, sessionID string) (*meeting.Meeting, error) {
	m, ok := r.bySession[sessionID]
	if !ok {
		return nil, notFoundErr("meeting not found")
	}
	return m, nil
}

func (r *fakeMeetingRepo) FindBySlot(_ context.Context, _ db.DBTX, expertID uuid.UUID, startAt time.Time) (*meeting.Meeting, error) {
	for _, m := range r.bySession {
		if m.Slot().ExpertID() == expertID && m.Slot().StartAt().Equal(startAt) {
			return m, nil
		}
	}
	return nil, notFoundErr("meeting not found")
}

func (r *fakeMeetingRepo) MarkRefundedBySession(_ context.Context, _ db.DBTX, sessionID string) error {
	m, ok := r.bySession[sessionID]
	if !ok {
		return notFoundErr("meeting not found")
	}
	return m.MarkRefunded()
}

// ---- payment sessions ----

type fakeSessionRepo struct {
	records map[string]repository.SessionRecord
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{records: make(map[string]repository.SessionRecord)}
}

func (r *fakeSessionRepo) Upsert(_ context.Context, _ db.DBTX, rec repository.SessionRecord) error {
	if existing, ok := r.records[rec.ID]; ok && existing.ReservationID != nil && rec.ReservationID == nil {
		rec.ReservationID = existing.ReservationID
	}
	r.records[rec.ID] = rec
	return nil
}

func (r *fakeSessionRepo) UpdateStatus(_ context.Context, _ db.DBTX, sessionID string, status repository.SessionStatus) error {
	rec, ok := r.records[sessionID]
	if !ok {
		return nil
	}
	rec.Status = status
	r.records[sessionID] = rec
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, _ db.DBTX, sessionID string) (*repository.SessionRecord, error) {
	rec, ok := r.records[sessionID]
	if !ok {
		return nil, notFoundErr("payment session not found")
	}
	return &rec, nil
}

// ---- webhook events ----

type fakeEventRepo struct {
	seen      map[string]uuid.UUID
	processed map[uuid.UUID]bool
	failures  map[uuid.UUID]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		seen:      make(map[string]uuid.UUID),
		processed: make(map[uuid.UUID]bool),
		failures:  make(map[uuid.UUID]string),
	}
}

func (r *fakeEventRepo) Record(_ context.Context, _ db.DBTX, provider, eventID, _ string, _ []byte, _ bool) (uuid.UUID, error) {
	key := provider + "|" + eventID
	if _, ok := r.seen[key]; ok {
		return uuid.Nil, repository.ErrEventAlreadyProcessed
	}
	id := uuid.New()
	r.seen[key] = id
	return id, nil
}

func (r *fakeEventRepo) MarkProcessed(_ context.Context, _ db.DBTX, id uuid.UUID) error {
	r.processed[id] = true
	return nil
}

func (r *fakeEventRepo) MarkFailed(_ context.Context, _ db.DBTX, id uuid.UUID, reason string) error {
	r.failures[id] = reason
	return nil
}

// ---- idempotency cache ----

type fakeIdemCache struct {
	records     map[string]*shared.IdempotencyRecord
	locks       map[string]bool
	unavailable bool
}

func newFakeIdemCache() *fakeIdemCache {
	return &fakeIdemCache{
		records: make(map[string]*shared.IdempotencyRecord),
		locks:   make(map[string]bool),
	}
}

func idemKey(holder, key uuid.UUID) string {
	return holder.String() + ":" + key.String()
}

func (c *fakeIdemCache) Begin(_ context.Context, holder, key uuid.UUID, requestHash string) (*shared.IdempotencyRecord, error) {
	if c.unavailable {
		return nil, infra.WrapRepoErr("cache down", nil, infra.KindUnavailable)
	}
	k := idemKey(holder, key)
	if rec, ok := c.records[k]; ok {
		if rec.RequestHash != requestHash {
			return nil, idempotency.ErrKeyReused
		}
		return rec, nil
	}
	if c.locks[k] {
		return nil, idempotency.ErrInFlight
	}
	c.locks[k] = true
	return nil, nil
}

func (c *fakeIdemCache) Complete(_ context.Context, holder, key uuid.UUID, requestHash string, response []byte) error {
	k := idemKey(holder, key)
	c.records[k] = &shared.IdempotencyRecord{RequestHash: requestHash, Response: response}
	delete(c.locks, k)
	return nil
}

func (c *fakeIdemCache) Abort(_ context.Context, holder, key uuid.UUID) error {
	delete(c.locks, idemKey(holder, key))
	return nil
}

// ---- payment gateway ----

type fakeGateway struct {
	sessions   []shared.CreateSessionParams
	refunds    []string
	failCreate bool
}

func (g *fakeGateway) CreateSession(_ context.Context, p shared.CreateSessionParams) (*shared.PaymentSession, error) {
	if g.failCreate {
		return nil, fmt.Errorf("provider said no")
	}
	g.sessions = append(g.sessions, p)
	return &shared.PaymentSession{
		ID:          fmt.Sprintf("sess_%d", len(g.sessions)),
		CheckoutURL: "https://pay.example.com/checkout",
		Status:      "open",
		ExpiresAt:   p.ExpiresAt,
	}, nil
}

func (g *fakeGateway) CreateRefund(_ context.Context, sessionID, _ string) error {
	g.refunds = append(g.refunds, sessionID)
	return nil
}

// ---- expert directory ----

type fakeDirectory struct {
	experts map[uuid.UUID]*shared.ExpertSnapshot
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{experts: make(map[uuid.UUID]*shared.ExpertSnapshot)}
}

func (d *fakeDirectory) add(name string, rate int64, active bool) uuid.UUID {
	id := uuid.New()
	d.experts[id] = &shared.ExpertSnapshot{ID: id, DisplayName: name, HourlyRateCents: rate, Active: active}
	return id
}

func (d *fakeDirectory) FindByID(_ context.Context, id uuid.UUID) (*shared.ExpertSnapshot, error) {
	e, ok := d.experts[id]
	if !ok {
		return nil, notFoundErr("expert not found")
	}
	return e, nil
}

// ---- notifications ----

type fakeNotifier struct {
	published []shared.Notification
}

func (n *fakeNotifier) Publish(_ context.Context, notification shared.Notification) error {
	n.published = append(n.published, notification)
	return nil
}

func (n *fakeNotifier) topics() []string {
	out := make([]string, len(n.published))
	for i, p := range n.published {
		out[i] = p.Topic
	}
	return out
}
