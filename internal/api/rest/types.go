package rest

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/transaction-risk-core/internal/domain/risk"
	"github.com/davidleathers/transaction-risk-core/internal/domain/transaction"
)

// ScoreRequest is the wire form of a transaction submitted for scoring.
type ScoreRequest struct {
	AccountID    uuid.UUID       `json:"account_id" validate:"required"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	ExternalID   string          `json:"external_id" validate:"required"`
	ShopID       string          `json:"shop_id,omitempty"`
	EventType    string          `json:"event_type" validate:"required"`
	EventTime    time.Time       `json:"event_time" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	Device       DeviceRequest   `json:"device"`
	Email        EmailRequest    `json:"email"`
	Billing      *AddressRequest `json:"billing_address,omitempty"`
	Shipping     *AddressRequest `json:"shipping_address,omitempty"`
	Payment      *PaymentRequest `json:"payment,omitempty"`
	IsGift       bool            `json:"is_gift,omitempty"`
	HasGiftNote  bool            `json:"has_gift_note,omitempty"`
	DiscountCode string          `json:"discount_code,omitempty"`
	NonBinding   bool            `json:"non_binding,omitempty"`
}

// DeviceRequest carries client device attributes.
type DeviceRequest struct {
	IP          string `json:"ip" validate:"omitempty,ip"`
	UserAgent   string `json:"user_agent,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// EmailRequest carries the customer email.
type EmailRequest struct {
	Address string `json:"address" validate:"omitempty,email"`
	Domain  string `json:"domain,omitempty"`
}

// AddressRequest carries a billing or shipping address.
type AddressRequest struct {
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty" validate:"omitempty,len=2"`
	PostalCode string `json:"postal_code,omitempty"`
}

// PaymentRequest carries non-sensitive payment instrument attributes.
type PaymentRequest struct {
	BIN        string `json:"bin,omitempty" validate:"omitempty,numeric"`
	LastDigits string `json:"last_digits,omitempty" validate:"omitempty,numeric"`
	Brand      string `json:"brand,omitempty"`
	Processor  string `json:"processor,omitempty"`
	AVSResult  string `json:"avs_result,omitempty"`
	CVVResult  string `json:"cvv_result,omitempty"`
}

// ScoreResponse is the verdict returned to the caller.
type ScoreResponse struct {
	ExternalID  string           `json:"external_id"`
	TotalScore  decimal.Decimal  `json:"total_score"`
	RiskLevel   risk.Level       `json:"risk_level"`
	Disposition risk.Disposition `json:"disposition"`
	RuleHits    []risk.Hit       `json:"rule_hits"`
	Flags       []string         `json:"flags,omitempty"`
	Breakdown   risk.Breakdown   `json:"breakdown"`
	ElapsedMS   float64          `json:"elapsed_ms"`
}

// RulesResponse describes the active rule snapshot.
type RulesResponse struct {
	Version  int       `json:"version"`
	Rules    int       `json:"rules"`
	LoadedAt time.Time `json:"loaded_at"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r *ScoreRequest) toDomain() (*transaction.Transaction, error) {
	currency := r.Currency
	if currency == "" {
		currency = "USD"
	}
	amount, err := transaction.NewMoney(r.Amount, currency)
	if err != nil {
		return nil, err
	}

	txn := &transaction.Transaction{
		AccountID:    r.AccountID,
		UserID:       r.UserID,
		ExternalID:   r.ExternalID,
		ShopID:       r.ShopID,
		EventType:    transaction.EventType(r.EventType),
		EventTime:    r.EventTime,
		Amount:       amount,
		Device:       transaction.Device(r.Device),
		Email:        transaction.Email(r.Email),
		IsGift:       r.IsGift,
		HasGiftNote:  r.HasGiftNote,
		DiscountCode: r.DiscountCode,
		NonBinding:   r.NonBinding,
	}
	if r.Billing != nil {
		addr := transaction.Address(*r.Billing)
		txn.Billing = &addr
	}
	if r.Shipping != nil {
		addr := transaction.Address(*r.Shipping)
		txn.Shipping = &addr
	}
	if r.Payment != nil {
		p := transaction.Payment(*r.Payment)
		txn.Payment = &p
	}
	return txn, nil
}

func newScoreResponse(externalID string, res risk.ScoreResult) ScoreResponse {
	return ScoreResponse{
		ExternalID:  externalID,
		TotalScore:  res.TotalScore,
		RiskLevel:   res.Level,
		Disposition: res.Disposition,
		RuleHits:    res.Hits,
		Flags:       res.Flags,
		Breakdown:   res.Breakdown,
		ElapsedMS:   float64(res.Elapsed) / float64(time.Millisecond),
	}
}
