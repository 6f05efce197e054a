package transaction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransaction(t *testing.T) *Transaction {
	t.Helper()
	amount, err := NewMoneyFromString("129.99", "USD")
	require.NoError(t, err)

	return &Transaction{
		AccountID:  uuid.New(),
		ExternalID: "ord-1001",
		ShopID:     "shop-7",
		EventType:  EventPurchase,
		EventTime:  time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Amount:     amount,
		Device:     Device{IP: "203.0.113.9", UserAgent: "Mozilla/5.0"},
		Email:      Email{Address: "Buyer@Example.COM"},
		Billing:    &Address{City: "Lisbon", Country: "PT"},
		Payment:    &Payment{BIN: "411111", LastDigits: "1111", Brand: "visa"},
	}
}

func TestEventType_IsValid(t *testing.T) {
	assert.True(t, EventPurchase.IsValid())
	assert.True(t, EventAccountCreation.IsValid())
	assert.False(t, EventType("chargeback").IsValid())
	assert.False(t, EventType("").IsValid())
}

func TestTransaction_FieldResolution(t *testing.T) {
	txn := sampleTransaction(t)

	tests := []struct {
		field string
		want  interface{}
	}{
		{"event_type", "purchase"},
		{"shop_id", "shop-7"},
		{"external_id", "ord-1001"},
		{"currency", "USD"},
		{"is_gift", false},
		{"device.ip", "203.0.113.9"},
		{"device.user_agent", "Mozilla/5.0"},
		{"email.domain", "example.com"},
		{"billing.city", "Lisbon"},
		{"billing.country", "PT"},
		{"payment.bin", "411111"},
		{"payment.brand", "visa"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := txn.Field(tt.field)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	amount, ok := txn.Field("amount")
	require.True(t, ok)
	assert.True(t, amount.(decimal.Decimal).Equal(decimal.RequireFromString("129.99")))
}

func TestTransaction_AbsentFieldsFailClosed(t *testing.T) {
	txn := sampleTransaction(t)
	txn.Shipping = nil
	txn.UserID = nil
	txn.DiscountCode = ""

	for _, field := range []string{"shipping.country", "user_id", "discount_code", "unknown_field"} {
		_, ok := txn.Field(field)
		assert.False(t, ok, "field %s should be absent", field)
	}
}

func TestTransaction_EmailIdentity(t *testing.T) {
	txn := sampleTransaction(t)

	// Hashing is case-insensitive over the address and never exposes it.
	other := sampleTransaction(t)
	other.Email.Address = "buyer@example.com"
	assert.Equal(t, txn.EmailHash(), other.EmailHash())
	assert.Len(t, txn.EmailHash(), 16)
	assert.NotContains(t, txn.EmailHash(), "@")

	// Explicit domain wins over the address domain.
	txn.Email.Domain = "Other.ORG"
	assert.Equal(t, "other.org", txn.EmailDomain())
}

func TestTransaction_CardHash(t *testing.T) {
	txn := sampleTransaction(t)

	assert.Len(t, txn.CardHash(), 16)
	assert.Equal(t, hashIdentity("411111:1111"), txn.CardHash())

	txn.Payment = nil
	assert.Empty(t, txn.CardHash())
	_, ok := txn.Field("card.hash")
	assert.False(t, ok)
}

func TestKnownField_CoversFieldResolver(t *testing.T) {
	txn := sampleTransaction(t)
	userID := uuid.New()
	txn.UserID = &userID
	txn.Shipping = &Address{City: "Porto", Region: "Norte", Country: "PT", PostalCode: "4000"}
	txn.Billing.Region = "Lisboa"
	txn.Billing.PostalCode = "1000"
	txn.DiscountCode = "WELCOME"
	txn.Device.SessionID = "sess-1"
	txn.Device.Fingerprint = "fp-1"
	txn.Payment.Processor = "stripe"
	txn.Payment.AVSResult = "Y"
	txn.Payment.CVVResult = "M"

	for _, field := range []string{
		"event_type", "event_time", "amount", "currency", "account_id",
		"user_id", "shop_id", "external_id", "discount_code", "is_gift",
		"has_gift_note",
		"device.ip", "device.user_agent", "device.session_id", "device.fingerprint",
		"email.hash", "email.domain",
		"billing.city", "billing.region", "billing.country", "billing.postal_code",
		"shipping.city", "shipping.region", "shipping.country", "shipping.postal_code",
		"payment.bin", "payment.last_digits", "payment.brand", "payment.processor",
		"payment.avs_result", "payment.cvv_result", "card.hash",
	} {
		assert.True(t, KnownField(field), "KnownField(%s)", field)
		_, ok := txn.Field(field)
		assert.True(t, ok, "Field(%s) should resolve on a fully populated transaction", field)
	}

	assert.False(t, KnownField("email.address"), "raw address is never rule-addressable")
}
