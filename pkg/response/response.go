package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码
// 前端据此区分"已处理完成"（当成功对待）和"当前阶段不允许"（展示真实阶段）
const (
	CodeTargetNotFound      = 1001 // 实体/支付信息/退款单不存在
	CodeInvalidTransition   = 1002 // 当前状态不允许该操作
	CodeAmountMismatch      = 1003 // 网关实付与应付不一致
	CodeInvalidTargetType   = 1004 // 未知结算对象类型
	CodeRefundNotAllowed    = 1005 // 没有可退金额
	CodeTicketSoldOut       = 1006 // 余票不足
	CodeGatewayFailed       = 1007 // 网关调用失败
	CodeInsufficientMileage = 1008 // 里程余额不足
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
