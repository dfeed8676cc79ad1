package rates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMissing is returned when a currency record or its selling
	// rate is absent from the payload.
	ErrCurrencyMissing = errors.New("currency missing")

	// ErrRateInvalid is returned when a selling rate is not a positive number.
	ErrRateInvalid = errors.New("rate invalid")
)

var (
	currencyRE     = regexp.MustCompile(`(?s)<Currency\b([^>]*)>(.*?)</Currency>`)
	currencyCodeRE = regexp.MustCompile(`\bCurrencyCode\s*=\s*"([A-Za-z]{3})"`)
	forexSellingRE = regexp.MustCompile(`(?s)<ForexSelling>(.*?)</ForexSelling>`)
	tarihRE        = regexp.MustCompile(`\bTarih\s*=\s*"(\d{2}\.\d{2}\.\d{4})"`)
)

// ParseToday extracts the USD and EUR forex selling rates and the bulletin
// date from the central bank's today.xml. The payload is treated as loosely
// structured text. Either both rates are returned or an error; Date is empty
// when the header carries none.
func ParseToday(payload string) (Snapshot, error) {
	records := map[string]string{}
	for _, m := range currencyRE.FindAllStringSubmatch(payload, -1) {
		code := currencyCodeRE.FindStringSubmatch(m[1])
		if code == nil {
			continue
		}
		c := strings.ToUpper(code[1])
		if _, seen := records[c]; !seen {
			records[c] = m[2]
		}
	}

	usd, err := sellingRate(records, "USD")
	if err != nil {
		return Snapshot{}, err
	}
	eur, err := sellingRate(records, "EUR")
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{USD: usd, EUR: eur, Source: SourcePrimary}
	if m := tarihRE.FindStringSubmatch(payload); m != nil {
		s.Date = m[1]
	}
	return s, nil
}

func sellingRate(records map[string]string, code string) (decimal.Decimal, error) {
	body, ok := records[code]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrCurrencyMissing, code)
	}
	m := forexSellingRE.FindStringSubmatch(body)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return decimal.Zero, fmt.Errorf("%w: %s ForexSelling", ErrCurrencyMissing, code)
	}
	raw := strings.ReplaceAll(strings.TrimSpace(m[1]), ",", ".")
	v, err := decimal.NewFromString(raw)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s=%q", ErrRateInvalid, code, raw)
	}
	return v, nil
}
