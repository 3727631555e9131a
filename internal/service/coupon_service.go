package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ThemOfWind/CTUDY-SERVER/internal/dto"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/model"
	"github.com/ThemOfWind/CTUDY-SERVER/internal/repository"
	apperrors "github.com/ThemOfWind/CTUDY-SERVER/pkg/errors"
)

// ── 券模块业务错误 ──

var (
	ErrCouponNotFound      = apperrors.New(apperrors.KindNotFound, "券不存在")
	ErrInvalidCouponMode   = apperrors.New(apperrors.KindValidation, "无效的查询模式，可选值: a, s, r, e")
	ErrInvalidCouponDate   = apperrors.New(apperrors.KindValidation, "日期格式应为 YYYY-MM-DD")
	ErrCouponWindowInvalid = apperrors.New(apperrors.KindValidation, "开始日期不能晚于结束日期")
	ErrCouponNameRequired  = apperrors.New(apperrors.KindValidation, "券名称不能为空")
	ErrCouponSelfSend      = apperrors.New(apperrors.KindValidation, "不能给自己发券")
	ErrReceiverNotInRoom   = apperrors.New(apperrors.KindValidation, "接收者不是该房间成员")
	ErrNotCouponReceiver   = apperrors.New(apperrors.KindAuthorization, "仅接收者可使用该券")
	ErrCouponAlreadyUsed   = apperrors.New(apperrors.KindValidation, "券已被使用")
	ErrCouponNotValidToday = apperrors.New(apperrors.KindValidation, "券不在有效期内")
)

// CouponService 券业务接口
type CouponService interface {
	CreateCoupon(ctx context.Context, senderID string, req *dto.CreateCouponRequest) (*dto.CouponResponse, error)
	// ListCoupons 按模式列出查看者在房间内的未使用券
	//   a: 发出与收到的全部  s: 发出的  r: 收到且当前有效的  e: 收到但已过期的
	ListCoupons(ctx context.Context, viewerID, roomID, mode string) (*dto.CouponListResponse, error)
	UseCoupon(ctx context.Context, actorID, couponID string) error
}

type couponService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewCouponService 创建 CouponService 实例
func NewCouponService(repo *repository.Repository, logger *zap.Logger) CouponService {
	return &couponService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── CreateCoupon ──────────────────────

func (s *couponService) CreateCoupon(ctx context.Context, senderID string, req *dto.CreateCouponRequest) (*dto.CouponResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrCouponNameRequired
	}
	start, end, err := parseWindow(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if senderID == req.ReceiverID {
		return nil, ErrCouponSelfSend
	}

	// 锁定房间归属，与成员移除 / 退出串行执行
	var created *model.Coupon
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		_, cfg, err := loadRoom(ctx, txRepo, s.logger, req.RoomID, true)
		if err != nil {
			return err
		}

		ok, err := isParticipant(ctx, txRepo, cfg, senderID)
		if err != nil {
			return storeError(s.logger, "查询房间成员失败", err)
		}
		if !ok {
			return ErrNotRoomParticipant
		}
		ok, err = isParticipant(ctx, txRepo, cfg, req.ReceiverID)
		if err != nil {
			return storeError(s.logger, "查询房间成员失败", err)
		}
		if !ok {
			return ErrReceiverNotInRoom
		}

		coupon := &model.Coupon{
			Name:       name,
			RoomID:     req.RoomID,
			SenderID:   senderID,
			ReceiverID: req.ReceiverID,
			StartDate:  start,
			EndDate:    end,
		}
		if err := txRepo.Coupon.Create(ctx, coupon); err != nil {
			return storeError(s.logger, "创建券失败", err)
		}

		created, err = txRepo.Coupon.GetByID(ctx, coupon.CouponID)
		if err != nil {
			return storeError(s.logger, "查询券失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("券已发放",
		zap.String("coupon_id", created.CouponID),
		zap.String("room_id", created.RoomID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", created.ReceiverID),
	)

	resp := toCouponResponse(created)
	return &resp, nil
}

// ────────────────────── ListCoupons ──────────────────────

func (s *couponService) ListCoupons(ctx context.Context, viewerID, roomID, mode string) (*dto.CouponListResponse, error) {
	if mode == "" {
		mode = dto.CouponModeAll
	}
	switch mode {
	case dto.CouponModeAll, dto.CouponModeSent, dto.CouponModeReceived, dto.CouponModeExpired:
	default:
		return nil, ErrInvalidCouponMode
	}

	_, cfg, err := loadRoom(ctx, s.repo, s.logger, roomID, false)
	if err != nil {
		return nil, err
	}
	ok, err := isParticipant(ctx, s.repo, cfg, viewerID)
	if err != nil {
		return nil, storeError(s.logger, "查询房间成员失败", err)
	}
	if !ok {
		return nil, ErrNotRoomParticipant
	}

	today := model.DateOf(s.now())
	resp := &dto.CouponListResponse{
		SendList:    []dto.CouponResponse{},
		ReceiveList: []dto.CouponResponse{},
	}

	if mode == dto.CouponModeAll || mode == dto.CouponModeSent {
		sent, err := s.repo.Coupon.ListUnused(ctx, repository.CouponFilter{RoomID: roomID, SenderID: viewerID})
		if err != nil {
			return nil, storeError(s.logger, "查询发出的券失败", err)
		}
		resp.SendList = toCouponResponses(sent)
	}

	if mode != dto.CouponModeSent {
		filter := repository.CouponFilter{RoomID: roomID, ReceiverID: viewerID}
		switch mode {
		case dto.CouponModeReceived:
			filter.ValidOn = &today
		case dto.CouponModeExpired:
			filter.ExpiredBefore = &today
		}
		received, err := s.repo.Coupon.ListUnused(ctx, filter)
		if err != nil {
			return nil, storeError(s.logger, "查询收到的券失败", err)
		}
		resp.ReceiveList = toCouponResponses(received)
	}

	return resp, nil
}

// ────────────────────── UseCoupon ──────────────────────

func (s *couponService) UseCoupon(ctx context.Context, actorID, couponID string) error {
	coupon, err := s.repo.Coupon.GetByID(ctx, couponID)
	if err != nil {
		return notFoundOr(s.logger, "查询券失败", err, ErrCouponNotFound)
	}
	if coupon.ReceiverID != actorID {
		return ErrNotCouponReceiver
	}
	if coupon.IsUsed {
		return ErrCouponAlreadyUsed
	}

	now := s.now()
	if !coupon.ValidOn(now) {
		return ErrCouponNotValidToday
	}

	n, err := s.repo.Coupon.MarkUsed(ctx, couponID, now)
	if err != nil {
		return storeError(s.logger, "使用券失败", err)
	}
	if n == 0 {
		return ErrCouponAlreadyUsed
	}

	s.logger.Info("券已使用", zap.String("coupon_id", couponID), zap.String("member_id", actorID))
	return nil
}

// ── 辅助函数 ──

func parseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidCouponDate
	}
	end, err := time.Parse(dateLayout, endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidCouponDate
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, ErrCouponWindowInvalid
	}
	return start, end, nil
}

func toCouponResponse(c *model.Coupon) dto.CouponResponse {
	resp := dto.CouponResponse{
		ID:        c.CouponID,
		Name:      c.Name,
		RoomID:    c.RoomID,
		StartDate: c.StartDate.Format(dateLayout),
		EndDate:   c.EndDate.Format(dateLayout),
		IsUsed:    c.IsUsed,
	}
	if c.Sender != nil {
		b := toMemberBrief(c.Sender)
		resp.Sender = &b
	} else {
		resp.Sender = &dto.MemberBrief{ID: c.SenderID}
	}
	if c.Receiver != nil {
		b := toMemberBrief(c.Receiver)
		resp.Receiver = &b
	} else {
		resp.Receiver = &dto.MemberBrief{ID: c.ReceiverID}
	}
	if c.UsedAt != nil {
		at := c.UsedAt.Format(time.RFC3339)
		resp.UsedAt = &at
	}
	return resp
}

func toCouponResponses(coupons []model.Coupon) []dto.CouponResponse {
	out := make([]dto.CouponResponse, 0, len(coupons))
	for i := range coupons {
		out = append(out, toCouponResponse(&coupons[i]))
	}
	return out
}
