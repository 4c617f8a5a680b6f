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

// CreateBeneficiary 新增受益人
// POST /v1/beneficiaries
func CreateBeneficiary(ctx context.Context, c *app.RequestContext) {
	var req model.CreateBeneficiaryRequest
	if err := c.Bind(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	data, err := service.Beneficiary().AddBeneficiary(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

// ListBeneficiaries 列出受益人
// GET /v1/beneficiaries?user_id=
func ListBeneficiaries(ctx context.Context, c *app.RequestContext) {
	userID, err := queryUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	data, err := service.Beneficiary().ListBeneficiaries(ctx, userID)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, data)
}

// DeleteBeneficiary 按优先级删除受益人
// DELETE /v1/beneficiaries/:priority?user_id=
func DeleteBeneficiary(ctx context.Context, c *app.RequestContext) {
	userID, err := queryUserID(c)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	priority, perr := strconv.Atoi(c.Param("priority"))
	if perr != nil || priority < 1 || priority > 3 {
		response.Error(ctx, c, pkgerrors.BeneficiaryNotFound)
		return
	}

	if err := service.Beneficiary().RemoveBeneficiary(ctx, userID, priority); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.NoContent(ctx, c)
}
