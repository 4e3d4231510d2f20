package email

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		currency string
		amount   string
		want     string
	}{
		{"usd", "99.99", "$99.99"},
		{"usd", "0", "$0.00"},
		{"usd", "1234.5", "$1,234.50"},
		{"usd", "1234567.891", "$1,234,567.89"},
		{"eur", "100", "€100.00"},
		{"chf", "12", "CHF 12.00"},
		{"usd", "-5.5", "-$5.50"},
	}
	for _, tt := range tests {
		t.Run(tt.currency+" "+tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.currency, decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestBuildOrderConfirmationBody(t *testing.T) {
	items := []OrderItem{
		{ProductID: "1", Name: "Wireless Headphones", Quantity: 2, UnitPrice: decimal.RequireFromString("99.99")},
		{ProductID: "9", Quantity: 1, UnitPrice: decimal.RequireFromString("5")},
		{ProductID: "3", Name: "<b>Bag</b>", Quantity: 1, UnitPrice: decimal.RequireFromString("1")},
	}

	body := BuildOrderConfirmationBody("order-123", "usd", decimal.RequireFromString("205.98"), items)

	assert.Contains(t, body, "order-123")
	assert.Contains(t, body, "Wireless Headphones")
	assert.Contains(t, body, "$199.98", "line subtotal")
	assert.Contains(t, body, "$205.98", "order total")
	assert.Contains(t, body, ">9<", "product id stands in for a missing name")
	assert.Contains(t, body, "&lt;b&gt;Bag&lt;/b&gt;")
	assert.NotContains(t, body, "<b>Bag</b>")
}

func TestSendOrderConfirmation(t *testing.T) {
	svc := NewService("smtp.local", "2525", "shop@example.com", "usd")
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	svc.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := svc.SendOrderConfirmation("buyer@example.com", "0123456789abcdef", decimal.RequireFromString("10"), nil)
	require.NoError(t, err)

	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, []string{"buyer@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotMsg, "From: shop@example.com\r\nTo: buyer@example.com\r\n"))
	assert.Contains(t, gotMsg, "Subject: Order confirmation #01234567\r\n")
	assert.Contains(t, gotMsg, "$10.00")
}

func TestSendOrderConfirmation_Error(t *testing.T) {
	svc := NewService("smtp.local", "2525", "shop@example.com", "usd")
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := svc.SendOrderConfirmation("buyer@example.com", "o1", decimal.Zero, nil)

	assert.EqualError(t, err, "connection refused")
}
