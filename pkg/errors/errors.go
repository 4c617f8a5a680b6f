package errors

import "fmt"

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// 打卡模块错误。
var (
	RecordNotFound = Definition{Code: "RECORD_NOT_FOUND", Message: "Check-in record not found"}
	CheckInLocked  = Definition{Code: "CHECK_IN_LOCKED", Message: "Inheritance already triggered, check-in requires administrative override"}
	InvalidUserID  = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID"}
)

// 受益人模块错误。
var (
	BeneficiaryLimitReached     = Definition{Code: "BENEFICIARY_LIMIT_REACHED", Message: "Beneficiary limit reached"}
	BeneficiaryPriorityConflict = Definition{Code: "BENEFICIARY_PRIORITY_CONFLICT", Message: "Beneficiary priority conflict"}
	BeneficiaryNotFound         = Definition{Code: "BENEFICIARY_NOT_FOUND", Message: "Beneficiary not found"}
	InvalidPhone                = Definition{Code: "INVALID_PHONE", Message: "Invalid phone number"}
)

// 基础设施错误。
var (
	StoreUnavailable = Definition{Code: "STORE_UNAVAILABLE", Message: "Record store unavailable"}
	DispatchFailed   = Definition{Code: "DISPATCH_FAILED", Message: "Notification dispatch failed"}
	RateLimited      = Definition{Code: "RATE_LIMITED", Message: "Too many requests"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	RecordNotFound.Code:              RecordNotFound,
	CheckInLocked.Code:               CheckInLocked,
	InvalidUserID.Code:               InvalidUserID,
	BeneficiaryLimitReached.Code:     BeneficiaryLimitReached,
	BeneficiaryPriorityConflict.Code: BeneficiaryPriorityConflict,
	BeneficiaryNotFound.Code:         BeneficiaryNotFound,
	InvalidPhone.Code:                InvalidPhone,
	StoreUnavailable.Code:            StoreUnavailable,
	DispatchFailed.Code:              DispatchFailed,
	RateLimited.Code:                 RateLimited,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// SkipMessageError 消费端幂等跳过：消息已处理过或已过期，应 ack 但不执行副作用
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return fmt.Sprintf("skip message: %s", e.Reason)
}
