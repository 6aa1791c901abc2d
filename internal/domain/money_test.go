package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		invalid bool
	}{
		{in: "0", want: 0},
		{in: "12.5", want: 1250},
		{in: "999.99", want: 99999},
		{in: "1000000000", want: 100000000000},
		{in: "-1", invalid: true},
		{in: "0.001", invalid: true},
		{in: "1000000000.01", invalid: true},
		{in: "184467440737095516.17", invalid: true},
		{in: "99999999999999999999999", invalid: true},
	}
	for _, tc := range cases {
		got, err := MinorUnits("amount", decimal.RequireFromString(tc.in))
		if tc.invalid {
			if !errors.Is(err, ErrValidation) {
				t.Errorf("%s: expected validation error, got %d, %v", tc.in, got, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%s: got %d, %v want %d", tc.in, got, err, tc.want)
		}
	}
}
