package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the transaction events subject to risk scoring.
type EventType string

const (
	EventAccountCreation   EventType = "account_creation"
	EventAccountLogin      EventType = "account_login"
	EventEmailChange       EventType = "email_change"
	EventPasswordReset     EventType = "password_reset"
	EventPayoutChange      EventType = "payout_change"
	EventPurchase          EventType = "purchase"
	EventRecurringPurchase EventType = "recurring_purchase"
	EventReferral          EventType = "referral"
	EventSurvey            EventType = "survey"
)

// IsValid reports whether the event type is one of the known values.
func (e EventType) IsValid() bool {
	switch e {
	case EventAccountCreation, EventAccountLogin, EventEmailChange,
		EventPasswordReset, EventPayoutChange, EventPurchase,
		EventRecurringPurchase, EventReferral, EventSurvey:
		return true
	}
	return false
}

// Device carries the device context observed on the request.
type Device struct {
	IP          string `json:"ip"`
	UserAgent   string `json:"user_agent,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Email carries the email context. The raw address never appears in rule
// reasons or logs; Hash is the stable identity used for velocity keys.
type Email struct {
	Address string `json:"address,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// Address is a billing or shipping address block.
type Address struct {
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Payment describes the payment instrument without holding the full PAN.
type Payment struct {
	BIN        string `json:"bin,omitempty"`
	LastDigits string `json:"last_digits,omitempty"`
	Brand      string `json:"brand,omitempty"`
	Processor  string `json:"processor,omitempty"`
	AVSResult  string `json:"avs_result,omitempty"`
	CVVResult  string `json:"cvv_result,omitempty"`
}

// Transaction is the immutable scoring input. It is created once per request
// and never mutated after entering the rule engine.
type Transaction struct {
	AccountID     uuid.UUID
	UserID        *uuid.UUID
	ExternalID    string
	ShopID        string
	EventType     EventType
	EventTime     time.Time
	Amount        Money
	Device        Device
	Email         Email
	Billing       *Address
	Shipping      *Address
	Payment       *Payment
	IsGift        bool
	HasGiftNote   bool
	DiscountCode  string
	NonBinding    bool // scored normally but dispositioned as "test"
}

// EmailHash returns a truncated, stable hash of the lowercased address for
// velocity identity values and reason strings.
func (t *Transaction) EmailHash() string {
	if t.Email.Address == "" {
		return ""
	}
	return hashIdentity(strings.ToLower(t.Email.Address))
}

// EmailDomain returns the address domain, preferring the explicit Domain field.
func (t *Transaction) EmailDomain() string {
	if t.Email.Domain != "" {
		return strings.ToLower(t.Email.Domain)
	}
	if i := strings.LastIndexByte(t.Email.Address, '@'); i >= 0 {
		return strings.ToLower(t.Email.Address[i+1:])
	}
	return ""
}

// CardHash returns a stable hash of BIN plus last digits, the card identity
// used for velocity keys.
func (t *Transaction) CardHash() string {
	if t.Payment == nil || t.Payment.BIN == "" {
		return ""
	}
	return hashIdentity(t.Payment.BIN + ":" + t.Payment.LastDigits)
}

// Field resolves a named field for rule evaluation. The second return is
// false when the field is absent on this transaction; comparisons against
// absent fields fail closed.
func (t *Transaction) Field(name string) (interface{}, bool) {
	switch name {
	case "event_type":
		return string(t.EventType), true
	case "event_time":
		return t.EventTime, true
	case "amount":
		return t.Amount.Amount(), true
	case "currency":
		return t.Amount.Currency(), true
	case "account_id":
		return t.AccountID.String(), true
	case "user_id":
		if t.UserID == nil {
			return nil, false
		}
		return t.UserID.String(), true
	case "shop_id":
		return nonEmpty(t.ShopID)
	case "external_id":
		return nonEmpty(t.ExternalID)
	case "discount_code":
		return nonEmpty(t.DiscountCode)
	case "is_gift":
		return t.IsGift, true
	case "has_gift_note":
		return t.HasGiftNote, true
	case "device.ip":
		return nonEmpty(t.Device.IP)
	case "device.user_agent":
		return nonEmpty(t.Device.UserAgent)
	case "device.session_id":
		return nonEmpty(t.Device.SessionID)
	case "device.fingerprint":
		return nonEmpty(t.Device.Fingerprint)
	case "email.hash":
		return nonEmpty(t.EmailHash())
	case "email.domain":
		return nonEmpty(t.EmailDomain())
	case "billing.city":
		return addressField(t.Billing, func(a *Address) string { return a.City })
	case "billing.region":
		return addressField(t.Billing, func(a *Address) string { return a.Region })
	case "billing.country":
		return addressField(t.Billing, func(a *Address) string { return a.Country })
	case "billing.postal_code":
		return addressField(t.Billing, func(a *Address) string { return a.PostalCode })
	case "shipping.city":
		return addressField(t.Shipping, func(a *Address) string { return a.City })
	case "shipping.region":
		return addressField(t.Shipping, func(a *Address) string { return a.Region })
	case "shipping.country":
		return addressField(t.Shipping, func(a *Address) string { return a.Country })
	case "shipping.postal_code":
		return addressField(t.Shipping, func(a *Address) string { return a.PostalCode })
	case "payment.bin":
		return paymentField(t.Payment, func(p *Payment) string { return p.BIN })
	case "payment.last_digits":
		return paymentField(t.Payment, func(p *Payment) string { return p.LastDigits })
	case "payment.brand":
		return paymentField(t.Payment, func(p *Payment) string { return p.Brand })
	case "payment.processor":
		return paymentField(t.Payment, func(p *Payment) string { return p.Processor })
	case "payment.avs_result":
		return paymentField(t.Payment, func(p *Payment) string { return p.AVSResult })
	case "payment.cvv_result":
		return paymentField(t.Payment, func(p *Payment) string { return p.CVVResult })
	case "card.hash":
		return nonEmpty(t.CardHash())
	}
	return nil, false
}

// KnownField reports whether a field name is resolvable on the transaction
// model. Used for structural validation at rule-set load time.
func KnownField(name string) bool {
	switch name {
	case "event_type", "event_time", "amount", "currency", "account_id",
		"user_id", "shop_id", "external_id", "discount_code", "is_gift",
		"has_gift_note",
		"device.ip", "device.user_agent", "device.session_id", "device.fingerprint",
		"email.hash", "email.domain",
		"billing.city", "billing.region", "billing.country", "billing.postal_code",
		"shipping.city", "shipping.region", "shipping.country", "shipping.postal_code",
		"payment.bin", "payment.last_digits", "payment.brand", "payment.processor",
		"payment.avs_result", "payment.cvv_result", "card.hash":
		return true
	}
	return false
}

func nonEmpty(s string) (interface{}, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

func addressField(a *Address, get func(*Address) string) (interface{}, bool) {
	if a == nil {
		return nil, false
	}
	return nonEmpty(get(a))
}

func paymentField(p *Payment, get func(*Payment) string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	return nonEmpty(get(p))
}

func hashIdentity(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}

// HashIdentity exposes the identity hashing used for velocity keys so callers
// normalizing out-of-band identities (manual invalidation flows) produce the
// same key material.
func HashIdentity(value string) string {
	return hashIdentity(value)
}
