// Package khqr builds KHQR payment payloads (EMVCo merchant-presented QR,
// Cambodian national standard) and derives the MD5 fingerprint the Bakong
// network uses to identify a transaction.
package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/khqrpos/pos-gateway/internal/core"
)

// EMV tag IDs used by the KHQR individual merchant template.
const (
	tagPayloadFormat      = "00"
	tagPointOfInitiation  = "01"
	tagMerchantAccount    = "29"
	tagMerchantCategory   = "52"
	tagCurrency           = "53"
	tagAmount             = "54"
	tagCountryCode        = "58"
	tagMerchantName       = "59"
	tagMerchantCity       = "60"
	tagAdditionalData     = "62"
	tagTimestamp          = "99"
	tagCRC                = "63"
	subTagAccountID       = "00"
	subTagBillNumber      = "01"
	subTagMobileNumber    = "02"
	subTagStoreLabel      = "03"
	subTagTerminalLabel   = "07"
	subTagCreationMillis  = "00"
	payloadFormatValue    = "01"
	pointOfInitiationDyn  = "12" // dynamic QR, amount fixed at generation
	merchantCategoryValue = "5999"
	countryCodeValue      = "KH"
)

// ISO 4217 numeric codes for the supported currencies.
var currencyNumeric = map[core.Currency]string{
	core.CurrencyUSD: "840",
	core.CurrencyKHR: "116",
}

// Merchant holds the static merchant identity embedded in every payload.
type Merchant struct {
	BankAccount string // Bakong account id, e.g. "myshop@aba"
	Name        string
	City        string
	StoreLabel  string
	Phone       string
	Terminal    string
}

// Builder produces KHQR payloads for a fixed merchant.
type Builder struct {
	merchant Merchant
}

// NewBuilder creates a payload builder for the given merchant.
func NewBuilder(m Merchant) *Builder {
	return &Builder{merchant: m}
}

// Payload assembles the canonical KHQR string for one sale. It is a pure
// function of its inputs: the same amount, currency, bill number and
// creation instant always yield byte-identical output, so the derived
// fingerprint survives process restarts. The bill number is unique per
// sale and is what keeps two otherwise identical sales from colliding.
func (b *Builder) Payload(amount decimal.Decimal, currency core.Currency, billNumber string, createdAt time.Time) (string, error) {
	code, ok := currencyNumeric[currency]
	if !ok {
		return "", fmt.Errorf("khqr: unsupported currency %q", currency)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("khqr: amount must be positive, got %s", amount)
	}

	var sb strings.Builder
	sb.WriteString(tlv(tagPayloadFormat, payloadFormatValue))
	sb.WriteString(tlv(tagPointOfInitiation, pointOfInitiationDyn))
	sb.WriteString(tlv(tagMerchantAccount, tlv(subTagAccountID, b.merchant.BankAccount)))
	sb.WriteString(tlv(tagMerchantCategory, merchantCategoryValue))
	sb.WriteString(tlv(tagCurrency, code))
	sb.WriteString(tlv(tagAmount, formatAmount(amount, currency)))
	sb.WriteString(tlv(tagCountryCode, countryCodeValue))
	sb.WriteString(tlv(tagMerchantName, clip(b.merchant.Name, 25)))
	sb.WriteString(tlv(tagMerchantCity, clip(b.merchant.City, 15)))

	var extra strings.Builder
	extra.WriteString(tlv(subTagBillNumber, clip(billNumber, 25)))
	if b.merchant.Phone != "" {
		extra.WriteString(tlv(subTagMobileNumber, clip(b.merchant.Phone, 25)))
	}
	if b.merchant.StoreLabel != "" {
		extra.WriteString(tlv(subTagStoreLabel, clip(b.merchant.StoreLabel, 25)))
	}
	if b.merchant.Terminal != "" {
		extra.WriteString(tlv(subTagTerminalLabel, clip(b.merchant.Terminal, 25)))
	}
	sb.WriteString(tlv(tagAdditionalData, extra.String()))

	millis := fmt.Sprintf("%d", createdAt.UnixMilli())
	sb.WriteString(tlv(tagTimestamp, tlv(subTagCreationMillis, millis)))

	payload := sb.String() + tagCRC + "04"
	return payload + crc16Hex(payload), nil
}

// Fingerprint derives the transaction fingerprint for a payload: the
// lowercase hex MD5 digest of the full QR string. MD5 is fixed by the
// Bakong lookup API, which keys transactions by this digest.
func Fingerprint(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// tlv encodes one tag-length-value field with a two-digit length.
func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// clip bounds a field to the maximum length the KHQR spec allows for it.
func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// formatAmount renders the amount per KHQR rules: KHR carries no decimal
// places, USD carries exactly two.
func formatAmount(amount decimal.Decimal, currency core.Currency) string {
	if currency == core.CurrencyKHR {
		return amount.Round(0).StringFixed(0)
	}
	return amount.StringFixed(2)
}

// crc16Hex computes the EMVCo checksum (CRC-16/CCITT-FALSE, poly 0x1021,
// init 0xFFFF) over the payload and renders it as four uppercase hex digits.
func crc16Hex(payload string) string {
	crc := uint16(0xFFFF)
	for _, b := range []byte(payload) {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc)
}
