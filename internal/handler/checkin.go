package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"

	"Heritage/internal/model"
	"Heritage/internal/service"
	pkgerrors "Heritage/pkg/errors"
	"Heritage/pkg/response"
)

// PostCheckin 记录一次存活打卡
// POST /v1/checkin
func PostCheckin(ctx context.Context, c *app.RequestContext) {
	var req model.CheckinRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	data, err := service.Checkin().RecordCheckin(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

// GetCheckinStatus 查询当前打卡状态
// GET /v1/checkin/status?user_id=
func GetCheckinStatus(ctx context.Context, c *app.RequestContext) {
	userID, err := queryUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	data, err := service.Checkin().GetStatus(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

// GetCheckinNotifications 查询通知日志，时间倒序
// GET /v1/checkin/notifications?user_id=&limit=
func GetCheckinNotifications(ctx context.Context, c *app.RequestContext) {
	userID, err := queryUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))

	data, err := service.Checkin().ListNotifications(ctx, userID, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

func queryUserID(c *app.RequestContext) (int64, error) {
	raw := c.Query("user_id")
	if raw == "" {
		return 0, pkgerrors.InvalidUserID
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, pkgerrors.InvalidUserID
	}
	return userID, nil
}
