package service

import (
	"context"
	"database/sql"
	"time"

	"marketpay/internal/gateway"
	"marketpay/internal/model"
	"marketpay/internal/repository"

	"gorm.io/gorm"
)

// ============================================================================
// service 层测试用的内存假实现
// 条件更新语义（状态不匹配 -> 类型化错误）与 repository 保持一致
// ============================================================================

type fakeTx struct {
	calls int
}

func (t *fakeTx) Transaction(fc func(tx *gorm.DB) error, _ ...*sql.TxOptions) error {
	t.calls++
	return fc(nil)
}

// ----------------------------------------------------------------------------

type fakePaymentStore struct {
	ads          map[int64]*model.AdPaymentInfo
	expos        map[int64]*model.ExpoPaymentInfo
	reservations map[int64]*model.ReservationPaymentInfo
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{
		ads:          map[int64]*model.AdPaymentInfo{},
		expos:        map[int64]*model.ExpoPaymentInfo{},
		reservations: map[int64]*model.ReservationPaymentInfo{},
	}
}

func (s *fakePaymentStore) CreateAd(_ context.Context, _ *gorm.DB, info *model.AdPaymentInfo) error {
	s.ads[info.TargetID] = info
	return nil
}

func (s *fakePaymentStore) CreateExpo(_ context.Context, _ *gorm.DB, info *model.ExpoPaymentInfo) error {
	s.expos[info.TargetID] = info
	return nil
}

func (s *fakePaymentStore) CreateReservation(_ context.Context, _ *gorm.DB, info *model.ReservationPaymentInfo) error {
	s.reservations[info.TargetID] = info
	return nil
}

func (s *fakePaymentStore) GetAdByTargetID(_ context.Context, targetID int64) (*model.AdPaymentInfo, error) {
	info, ok := s.ads[targetID]
	if !ok {
		return nil, repository.ErrPaymentInfoNotFound
	}
	return info, nil
}

func (s *fakePaymentStore) GetExpoByTargetID(_ context.Context, targetID int64) (*model.ExpoPaymentInfo, error) {
	info, ok := s.expos[targetID]
	if !ok {
		return nil, repository.ErrPaymentInfoNotFound
	}
	return info, nil
}

func (s *fakePaymentStore) GetReservationByTargetID(_ context.Context, targetID int64) (*model.ReservationPaymentInfo, error) {
	info, ok := s.reservations[targetID]
	if !ok {
		return nil, repository.ErrPaymentInfoNotFound
	}
	return info, nil
}

func (s *fakePaymentStore) status(targetType model.TargetType, targetID int64) (status *string, err error) {
	switch targetType {
	case model.TargetAd:
		if info, ok := s.ads[targetID]; ok {
			return &info.Status, nil
		}
	case model.TargetExpo:
		if info, ok := s.expos[targetID]; ok {
			return &info.Status, nil
		}
	case model.TargetReservation:
		if info, ok := s.reservations[targetID]; ok {
			return &info.Status, nil
		}
	default:
		return nil, model.ErrInvalidTargetType
	}
	return nil, repository.ErrPaymentInfoNotFound
}

func (s *fakePaymentStore) Confirm(_ context.Context, _ *gorm.DB, targetType model.TargetType, targetID int64, impUID string, paidAt time.Time) error {
	status, err := s.status(targetType, targetID)
	if err != nil {
		return err
	}
	if *status != model.PaymentStatusPending {
		return &model.InvalidTransitionError{
			Entity: string(targetType) + " payment", Op: "confirm", Current: model.PaymentStatusPending,
		}
	}
	*status = model.PaymentStatusSuccess
	switch targetType {
	case model.TargetAd:
		s.ads[targetID].ImpUID, s.ads[targetID].PaidAt = impUID, &paidAt
	case model.TargetExpo:
		s.expos[targetID].ImpUID, s.expos[targetID].PaidAt = impUID, &paidAt
	case model.TargetReservation:
		s.reservations[targetID].ImpUID, s.reservations[targetID].PaidAt = impUID, &paidAt
	}
	return nil
}

func (s *fakePaymentStore) AttachImpUID(_ context.Context, _ *gorm.DB, targetType model.TargetType, targetID int64, impUID string) error {
	status, err := s.status(targetType, targetID)
	if err != nil {
		return err
	}
	if *status != model.PaymentStatusPending {
		return &model.InvalidTransitionError{
			Entity: string(targetType) + " payment", Op: "attachImpUid", Current: model.PaymentStatusPending,
		}
	}
	switch targetType {
	case model.TargetAd:
		s.ads[targetID].ImpUID = impUID
	case model.TargetExpo:
		s.expos[targetID].ImpUID = impUID
	case model.TargetReservation:
		s.reservations[targetID].ImpUID = impUID
	}
	return nil
}

func (s *fakePaymentStore) UpdateStatus(_ context.Context, _ *gorm.DB, targetType model.TargetType, targetID int64, fromStatus, toStatus string) error {
	status, err := s.status(targetType, targetID)
	if err != nil {
		return err
	}
	if *status != fromStatus {
		return &model.InvalidTransitionError{
			Entity: string(targetType) + " payment", Op: "updateStatus", Current: fromStatus,
		}
	}
	*status = toStatus
	return nil
}

// ----------------------------------------------------------------------------

type fakeAdStore struct {
	ads    map[int64]*model.Advertisement
	nextID int64
}

func newFakeAdStore() *fakeAdStore {
	return &fakeAdStore{ads: map[int64]*model.Advertisement{}, nextID: 1}
}

func (s *fakeAdStore) Create(_ context.Context, _ *gorm.DB, ad *model.Advertisement) error {
	if ad.ID == 0 {
		ad.ID = s.nextID
		s.nextID++
	}
	s.ads[ad.ID] = ad
	return nil
}

func (s *fakeAdStore) GetByID(_ context.Context, id int64) (*model.Advertisement, error) {
	ad, ok := s.ads[id]
	if !ok {
		return nil, repository.ErrAdNotFound
	}
	return ad, nil
}

func (s *fakeAdStore) UpdateStatus(_ context.Context, _ *gorm.DB, id int64, fromStatus, toStatus string) error {
	ad, ok := s.ads[id]
	if !ok || ad.Status != fromStatus {
		return &model.InvalidTransitionError{Entity: "advertisement", Op: "updateStatus", Current: fromStatus}
	}
	ad.Status = toStatus
	return nil
}

// ----------------------------------------------------------------------------

type fakeExpoStore struct {
	expos  map[int64]*model.Expo
	nextID int64
}

func newFakeExpoStore() *fakeExpoStore {
	return &fakeExpoStore{expos: map[int64]*model.Expo{}, nextID: 1}
}

func (s *fakeExpoStore) Create(_ context.Context, _ *gorm.DB, expo *model.Expo) error {
	if expo.ID == 0 {
		expo.ID = s.nextID
		s.nextID++
	}
	s.expos[expo.ID] = expo
	return nil
}

func (s *fakeExpoStore) GetByID(_ context.Context, id int64) (*model.Expo, error) {
	expo, ok := s.expos[id]
	if !ok {
		return nil, repository.ErrExpoNotFound
	}
	return expo, nil
}

func (s *fakeExpoStore) UpdateStatus(_ context.Context, _ *gorm.DB, id int64, fromStatus, toStatus string) error {
	expo, ok := s.expos[id]
	if !ok || expo.Status != fromStatus {
		return &model.InvalidTransitionError{Entity: "expo", Op: "updateStatus", Current: fromStatus}
	}
	expo.Status = toStatus
	return nil
}

// ----------------------------------------------------------------------------

type fakeReservationStore struct {
	reservations map[int64]*model.Reservation
	options      map[int64]*model.TicketOption
	members      map[int64]*model.Member
	tickets      []*model.AdmissionTicket
	nextID       int64
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{
		reservations: map[int64]*model.Reservation{},
		options:      map[int64]*model.TicketOption{},
		members:      map[int64]*model.Member{},
		nextID:       1,
	}
}

func (s *fakeReservationStore) Create(_ context.Context, _ *gorm.DB, reservation *model.Reservation) error {
	if reservation.ID == 0 {
		reservation.ID = s.nextID
		s.nextID++
	}
	s.reservations[reservation.ID] = reservation
	return nil
}

func (s *fakeReservationStore) GetByID(_ context.Context, id int64) (*model.Reservation, error) {
	reservation, ok := s.reservations[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	return reservation, nil
}

func (s *fakeReservationStore) UpdateStatus(_ context.Context, _ *gorm.DB, id int64, fromStatus, toStatus string) error {
	reservation, ok := s.reservations[id]
	if !ok || reservation.Status != fromStatus {
		return &model.InvalidTransitionError{Entity: "reservation", Op: "updateStatus", Current: fromStatus}
	}
	reservation.Status = toStatus
	return nil
}

func (s *fakeReservationStore) GetTicketOption(_ context.Context, id int64) (*model.TicketOption, error) {
	option, ok := s.options[id]
	if !ok {
		return nil, repository.ErrTicketOptionNotFound
	}
	return option, nil
}

func (s *fakeReservationStore) DeductInventory(_ context.Context, _ *gorm.DB, optionID int64, quantity int) error {
	option, ok := s.options[optionID]
	if !ok {
		return repository.ErrTicketOptionNotFound
	}
	if option.Remaining < quantity {
		return repository.ErrTicketSoldOut
	}
	option.Remaining -= quantity
	return nil
}

func (s *fakeReservationStore) RestoreInventory(_ context.Context, _ *gorm.DB, optionID int64, quantity int) error {
	option, ok := s.options[optionID]
	if !ok {
		return repository.ErrTicketOptionNotFound
	}
	option.Remaining += quantity
	return nil
}

func (s *fakeReservationStore) CreateTicket(_ context.Context, _ *gorm.DB, ticket *model.AdmissionTicket) error {
	s.tickets = append(s.tickets, ticket)
	return nil
}

func (s *fakeReservationStore) RevokeTickets(_ context.Context, _ *gorm.DB, reservationID int64) (int64, error) {
	var revoked int64
	for _, ticket := range s.tickets {
		if ticket.ReservationID != reservationID {
			continue
		}
		if ticket.Status == model.TicketStatusIssued || ticket.Status == model.TicketStatusActive {
			ticket.Status = model.TicketStatusExpired
			revoked++
		}
	}
	return revoked, nil
}

func (s *fakeReservationStore) GetMember(_ context.Context, id int64) (*model.Member, error) {
	member, ok := s.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return member, nil
}

func (s *fakeReservationStore) ApplyMileage(_ context.Context, _ *gorm.DB, memberID int64, delta int64) error {
	member, ok := s.members[memberID]
	if !ok {
		return repository.ErrMemberNotFound
	}
	if member.Mileage+delta < 0 {
		return repository.ErrInsufficientMileage
	}
	member.Mileage += delta
	return nil
}

// ----------------------------------------------------------------------------

type fakeRefundStore struct {
	refunds map[int64]*model.Refund
	nextID  int64
}

func newFakeRefundStore() *fakeRefundStore {
	return &fakeRefundStore{refunds: map[int64]*model.Refund{}, nextID: 1}
}

func (s *fakeRefundStore) Create(_ context.Context, _ *gorm.DB, refund *model.Refund) error {
	if refund.ID == 0 {
		refund.ID = s.nextID
		s.nextID++
	}
	s.refunds[refund.ID] = refund
	return nil
}

func (s *fakeRefundStore) GetPendingByTarget(_ context.Context, targetType model.TargetType, targetID int64) (*model.Refund, error) {
	for _, refund := range s.refunds {
		if refund.TargetType == targetType && refund.TargetID == targetID && refund.Status == model.RefundStatusPending {
			return refund, nil
		}
	}
	return nil, repository.ErrRefundNotFound
}

func (s *fakeRefundStore) ExistsPendingByTarget(_ context.Context, targetType model.TargetType, targetID int64) (bool, error) {
	for _, refund := range s.refunds {
		if refund.TargetType == targetType && refund.TargetID == targetID && refund.Status == model.RefundStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeRefundStore) MarkRefunded(_ context.Context, _ *gorm.DB, id int64, amount int64, isPartial bool, refundedAt time.Time) error {
	refund, ok := s.refunds[id]
	if !ok || refund.Status != model.RefundStatusPending {
		return &model.InvalidTransitionError{Entity: "refund", Op: "markRefunded", Current: model.RefundStatusPending}
	}
	refund.Status = model.RefundStatusRefunded
	refund.Amount = amount
	refund.IsPartial = isPartial
	refund.RefundedAt = &refundedAt
	return nil
}

func (s *fakeRefundStore) SumRefundedAmountByType(_ context.Context, targetType model.TargetType) (int64, error) {
	var total int64
	for _, refund := range s.refunds {
		if refund.TargetType == targetType && refund.Status == model.RefundStatusRefunded {
			total += refund.Amount
		}
	}
	return total, nil
}

func (s *fakeRefundStore) MarkRejected(_ context.Context, _ *gorm.DB, id int64) error {
	refund, ok := s.refunds[id]
	if !ok || refund.Status != model.RefundStatusPending {
		return &model.InvalidTransitionError{Entity: "refund", Op: "markRejected", Current: model.RefundStatusPending}
	}
	refund.Status = model.RefundStatusRejected
	return nil
}

// ----------------------------------------------------------------------------

type fakeOutboxStore struct {
	messages []*model.OutboxMessage
}

func (s *fakeOutboxStore) Create(_ context.Context, _ *gorm.DB, msg *model.OutboxMessage) error {
	s.messages = append(s.messages, msg)
	return nil
}

// ----------------------------------------------------------------------------

// fakeGateway 可编程网关假实现
type fakeGateway struct {
	payments     map[string]*gateway.Payment // impUid -> 权威查询结果
	refundErr    error
	refundCalls  []fakeRefundCall
	findCalls    int
	vbankCalls   int
	refundResult *gateway.RefundResult
}

type fakeRefundCall struct {
	impUID       string
	cancelAmount *int64
	reason       string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: map[string]*gateway.Payment{}}
}

func (g *fakeGateway) Verify(_ context.Context, impUID, _ string, amount int64) (*gateway.Payment, error) {
	payment, ok := g.payments[impUID]
	if !ok {
		return nil, gateway.ErrPaymentNotFound
	}
	if payment.Status != gateway.StatusPaid || payment.PaidAmount != amount {
		return nil, model.ErrAmountMismatch
	}
	return payment, nil
}

func (g *fakeGateway) VerifyVirtualAccount(_ context.Context, impUID, _ string, amount int64) (*gateway.Payment, error) {
	g.vbankCalls++
	payment, ok := g.payments[impUID]
	if !ok {
		return nil, gateway.ErrPaymentNotFound
	}
	if payment.Status == gateway.StatusPaid && payment.PaidAmount != amount {
		return nil, model.ErrAmountMismatch
	}
	return payment, nil
}

func (g *fakeGateway) Refund(_ context.Context, impUID string, cancelAmount *int64, reason string) (*gateway.RefundResult, error) {
	g.refundCalls = append(g.refundCalls, fakeRefundCall{impUID: impUID, cancelAmount: cancelAmount, reason: reason})
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	if g.refundResult != nil {
		return g.refundResult, nil
	}
	amount := int64(0)
	if cancelAmount != nil {
		amount = *cancelAmount
	}
	return &gateway.RefundResult{RefundedAmount: amount, IsPartial: cancelAmount != nil, RefundedAt: time.Now()}, nil
}

func (g *fakeGateway) FindByImpUID(_ context.Context, impUID string) (*gateway.Payment, error) {
	g.findCalls++
	payment, ok := g.payments[impUID]
	if !ok {
		return nil, gateway.ErrPaymentNotFound
	}
	return payment, nil
}
