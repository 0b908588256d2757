package handler

import (
	"errors"
	"log"
	"strconv"
	"time"

	"marketpay/internal/config"
	"marketpay/internal/gateway"
	"marketpay/internal/model"
	"marketpay/internal/repository"
	"marketpay/internal/service"
	"marketpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	paymentService     *service.PaymentService
	refundService      *service.RefundService
	adService          *service.AdService
	expoService        *service.ExpoService
	reservationService *service.ReservationService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, gw gateway.Client, cfg *config.Config) *Handler {
	return &Handler{
		paymentService:     service.NewPaymentService(db, gw, cfg),
		refundService:      service.NewRefundService(db, rdb, gw, cfg),
		adService:          service.NewAdService(db),
		expoService:        service.NewExpoService(db),
		reservationService: service.NewReservationService(db, gw, cfg),
	}
}

// writeServiceError 把服务层错误翻译成业务错误码
// 前端必须能区分"已处理"和"当前阶段不允许"，不能笼统返回失败
func writeServiceError(c *gin.Context, err error) {
	var transitionErr *model.InvalidTransitionError
	switch {
	case errors.As(err, &transitionErr):
		response.BusinessError(c, response.CodeInvalidTransition, transitionErr.Error())
	case errors.Is(err, model.ErrAmountMismatch):
		response.BusinessError(c, response.CodeAmountMismatch, err.Error())
	case errors.Is(err, model.ErrRefundNotAllowed):
		response.BusinessError(c, response.CodeRefundNotAllowed, err.Error())
	case errors.Is(err, model.ErrInvalidTargetType):
		response.BusinessError(c, response.CodeInvalidTargetType, err.Error())
	case errors.Is(err, repository.ErrTicketSoldOut):
		response.BusinessError(c, response.CodeTicketSoldOut, err.Error())
	case errors.Is(err, repository.ErrInsufficientMileage):
		response.BusinessError(c, response.CodeInsufficientMileage, err.Error())
	case errors.Is(err, repository.ErrAdNotFound),
		errors.Is(err, repository.ErrExpoNotFound),
		errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, repository.ErrTicketOptionNotFound),
		errors.Is(err, repository.ErrPaymentInfoNotFound),
		errors.Is(err, repository.ErrRefundNotFound):
		response.BusinessError(c, response.CodeTargetNotFound, err.Error())
	case errors.Is(err, gateway.ErrRefundFailed), errors.Is(err, gateway.ErrPaymentNotFound):
		response.BusinessError(c, response.CodeGatewayFailed, err.Error())
	case errors.Is(err, service.ErrRefundAlreadyRequested):
		response.BusinessError(c, response.CodeBusinessError, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "id 参数错误")
		return 0, false
	}
	return id, true
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ============================================================
// 支付相关接口
// ============================================================

// PaymentWebhook 网关 webhook 回调
// POST /api/v1/payments/webhook
//
// 回调体只是触发器，金额一律以网关重查为准。
// 幂等守卫命中时静默成功；金额不一致必须暴露错误码，不能静默重试
func (h *Handler) PaymentWebhook(c *gin.Context) {
	var n gateway.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.paymentService.HandleNotification(c.Request.Context(), &n); err != nil {
		log.Printf("[Webhook] 处理失败: impUid=%s, err=%v", n.ImpUID, err)
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "ok"})
}

// CompletePaymentRequest 卡支付同步确认请求
type CompletePaymentRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   int64  `json:"target_id" binding:"required"`
	ImpUID     string `json:"imp_uid" binding:"required"`
}

// CompletePayment 卡支付同步确认
// POST /api/v1/payments/complete
func (h *Handler) CompletePayment(c *gin.Context) {
	var req CompletePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.paymentService.Complete(c.Request.Context(),
		model.TargetType(req.TargetType), req.TargetID, req.ImpUID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "支付确认成功"})
}

// ============================================================
// 广告相关接口
// ============================================================

// CreateAdRequest 广告投放申请
type CreateAdRequest struct {
	UserID    int64  `json:"user_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
	ImageURL  string `json:"image_url"`
	LinkURL   string `json:"link_url"`
	StartDate string `json:"start_date" binding:"required"` // 2006-01-02
	EndDate   string `json:"end_date" binding:"required"`
	FeePerDay int64  `json:"fee_per_day" binding:"required,gt=0"`
}

// CreateAd 发起广告投放申请
// POST /api/v1/ads
func (h *Handler) CreateAd(c *gin.Context) {
	var req CreateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		response.ParamError(c, "start_date 格式错误")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		response.ParamError(c, "end_date 格式错误")
		return
	}

	ad, err := h.adService.Create(c.Request.Context(), &service.CreateAdRequest{
		UserID:    req.UserID,
		Title:     req.Title,
		ImageURL:  req.ImageURL,
		LinkURL:   req.LinkURL,
		StartDate: startDate,
		EndDate:   endDate,
		FeePerDay: req.FeePerDay,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, ad)
}

// RequestRefundBody 退款申请
type RequestRefundBody struct {
	Reason        string `json:"reason" binding:"required"`
	RefundHolder  string `json:"refund_holder"`
	RefundBank    string `json:"refund_bank"`
	RefundAccount string `json:"refund_account"`
	RefundTel     string `json:"refund_tel"`
}

// RequestAdRefund 广告退款申请
// POST /api/v1/ads/:id/refund
func (h *Handler) RequestAdRefund(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req RequestRefundBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	refund, err := h.adService.RequestRefund(c.Request.Context(), id, &service.RequestRefundInput{
		Reason:        req.Reason,
		RefundHolder:  req.RefundHolder,
		RefundBank:    req.RefundBank,
		RefundAccount: req.RefundAccount,
		RefundTel:     req.RefundTel,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, refund)
}

// transitionHandler 管理员状态操作的通用包装
// 状态迁移合法性由迁移表统一校验，这里只负责取参和回包
func transitionHandler(fn func(c *gin.Context, id int64) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseIDParam(c)
		if !ok {
			return
		}
		if err := fn(c, id); err != nil {
			writeServiceError(c, err)
			return
		}
		response.Success(c, gin.H{"message": "ok"})
	}
}

// ApproveAd 管理员审核通过广告
// POST /api/v1/admin/ads/:id/approve
func (h *Handler) ApproveAd() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.adService.Approve(c.Request.Context(), id)
	})
}

// RejectAd 管理员驳回广告
func (h *Handler) RejectAd() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.adService.Reject(c.Request.Context(), id)
	})
}

// PublishAd 手动上线广告
func (h *Handler) PublishAd() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.adService.Publish(c.Request.Context(), id)
	})
}

// CompleteAd 手动结束广告投放
func (h *Handler) CompleteAd() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.adService.Complete(c.Request.Context(), id)
	})
}

// ============================================================
// 展会相关接口
// ============================================================

// CreateExpoRequest 参展申请
type CreateExpoRequest struct {
	UserID         int64   `json:"user_id" binding:"required"`
	Title          string  `json:"title" binding:"required"`
	Location       string  `json:"location"`
	IsPremium      bool    `json:"is_premium"`
	StartDate      string  `json:"start_date" binding:"required"`
	EndDate        string  `json:"end_date" binding:"required"`
	Deposit        int64   `json:"deposit" binding:"required,gt=0"`
	PremiumDeposit int64   `json:"premium_deposit"`
	DailyUsageFee  int64   `json:"daily_usage_fee" binding:"required,gt=0"`
	CommissionRate float64 `json:"commission_rate"`
}

// CreateExpo 发起参展申请
// POST /api/v1/expos
func (h *Handler) CreateExpo(c *gin.Context) {
	var req CreateExpoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		response.ParamError(c, "start_date 格式错误")
		return
	}
	endDate, err := parseDate(req.EndDate)
	if err != nil {
		response.ParamError(c, "end_date 格式错误")
		return
	}

	expo, err := h.expoService.Create(c.Request.Context(), &service.CreateExpoRequest{
		UserID:         req.UserID,
		Title:          req.Title,
		Location:       req.Location,
		IsPremium:      req.IsPremium,
		StartDate:      startDate,
		EndDate:        endDate,
		Deposit:        req.Deposit,
		PremiumDeposit: req.PremiumDeposit,
		DailyUsageFee:  req.DailyUsageFee,
		CommissionRate: req.CommissionRate,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, expo)
}

// ApproveExpo 管理员审核通过参展申请
// POST /api/v1/admin/expos/:id/approve
func (h *Handler) ApproveExpo() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.expoService.Approve(c.Request.Context(), id)
	})
}

// RejectExpo 管理员驳回参展申请
func (h *Handler) RejectExpo() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.expoService.Reject(c.Request.Context(), id)
	})
}

// PublishExpo 手动开展
func (h *Handler) PublishExpo() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.expoService.Publish(c.Request.Context(), id)
	})
}

// CompleteExpo 手动闭展
func (h *Handler) CompleteExpo() gin.HandlerFunc {
	return transitionHandler(func(c *gin.Context, id int64) error {
		return h.expoService.Complete(c.Request.Context(), id)
	})
}

// RequestExpoRefund 展会退款申请
// POST /api/v1/expos/:id/refund
func (h *Handler) RequestExpoRefund(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req RequestRefundBody
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	refund, err := h.expoService.RequestRefund(c.Request.Context(), id, &service.RequestRefundInput{
		Reason:        req.Reason,
		RefundHolder:  req.RefundHolder,
		RefundBank:    req.RefundBank,
		RefundAccount: req.RefundAccount,
		RefundTel:     req.RefundTel,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, refund)
}

// ============================================================
// 预约相关接口
// ============================================================

// CreateReservationRequest 门票预约请求
type CreateReservationRequest struct {
	ExpoID         int64  `json:"expo_id" binding:"required"`
	TicketOptionID int64  `json:"ticket_option_id" binding:"required"`
	MemberID       *int64 `json:"member_id"`
	GuestName      string `json:"guest_name"`
	GuestTel       string `json:"guest_tel"`
	Quantity       int    `json:"quantity" binding:"required,gt=0"`
	PayMethod      string `json:"pay_method" binding:"required,oneof=card vbank"`
	UsedMileage    int64  `json:"used_mileage"`
}

// CreateReservation 创建门票预约
// POST /api/v1/reservations
func (h *Handler) CreateReservation(c *gin.Context) {
	var req CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	reservation, err := h.reservationService.Create(c.Request.Context(), &service.CreateReservationRequest{
		ExpoID:         req.ExpoID,
		TicketOptionID: req.TicketOptionID,
		MemberID:       req.MemberID,
		GuestName:      req.GuestName,
		GuestTel:       req.GuestTel,
		Quantity:       req.Quantity,
		PayMethod:      req.PayMethod,
		UsedMileage:    req.UsedMileage,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, reservation)
}

// ConfirmVbank 虚拟账户发放确认
// POST /api/v1/reservations/:id/vbank
//
// 网关分配好虚拟账户后前端回传 impUid，服务端按网关重查核对后回填支付号
func (h *Handler) ConfirmVbank(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req struct {
		ImpUID string `json:"imp_uid" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.reservationService.ConfirmVbankIssued(c.Request.Context(), id, req.ImpUID); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "虚拟账户已确认"})
}

// CancelReservation 取消预约（已支付走全额退款，未入金直接取消）
// POST /api/v1/reservations/:id/cancel
func (h *Handler) CancelReservation(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.reservationService.Cancel(c.Request.Context(), id, req.Reason); err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "预约已取消"})
}

// ============================================================
// 退款处理接口（管理员）
// ============================================================

// RefundTargetRequest 退款处理请求
type RefundTargetRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   int64  `json:"target_id" binding:"required"`
}

// ExecuteRefund 批准并执行退款
// POST /api/v1/admin/refunds/execute
//
// 退款金额只采用服务端计算结果，请求体里没有金额字段
func (h *Handler) ExecuteRefund(c *gin.Context) {
	var req RefundTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.refundService.Execute(c.Request.Context(),
		model.TargetType(req.TargetType), req.TargetID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// RefundSummary 各结算对象类型的已退金额汇总
// GET /api/v1/admin/refunds/summary
func (h *Handler) RefundSummary(c *gin.Context) {
	summary, err := h.refundService.Summary(c.Request.Context())
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, summary)
}

// RejectRefund 驳回退款申请（denyCancel）
// POST /api/v1/admin/refunds/reject
func (h *Handler) RejectRefund(c *gin.Context) {
	var req RefundTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.refundService.Reject(c.Request.Context(),
		model.TargetType(req.TargetType), req.TargetID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "退款申请已驳回"})
}
