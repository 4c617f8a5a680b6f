package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"Heritage/internal/handler"
	"Heritage/internal/middleware"
)

func Register(h *server.Hertz) {

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())

	v1 := h.Group("/v1")

	// 存活打卡路由
	checkin := v1.Group("/checkin")
	{
		checkin.POST("", middleware.CheckinRateLimitMiddleware(), handler.PostCheckin)
		checkin.GET("/status", handler.GetCheckinStatus)
		checkin.GET("/notifications", handler.GetCheckinNotifications)
	}

	// 受益人路由
	beneficiaries := v1.Group("/beneficiaries")
	beneficiaries.Use(middleware.GeneralRateLimitMiddleware())
	{
		beneficiaries.GET("", handler.ListBeneficiaries)
		beneficiaries.POST("", handler.CreateBeneficiary)
		beneficiaries.DELETE("/:priority", handler.DeleteBeneficiary)
	}
}
