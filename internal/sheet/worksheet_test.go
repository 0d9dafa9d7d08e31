package sheet

import (
	"errors"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{
		1:  "A",
		2:  "B",
		26: "Z",
		27: "AA",
		28: "AB",
		52: "AZ",
		53: "BA",
	}
	for col, want := range cases {
		if got := ColumnLetter(col); got != want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", col, got, want)
		}
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{float64(1234), "1234"},
		{float64(1234.5), "1234.5"},
		{float64(0.05), "0.05"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := cellString(tc.in); got != tc.want {
			t.Errorf("cellString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	retriable := []error{
		&googleapi.Error{Code: 429, Message: "rate limit"},
		&googleapi.Error{Code: 503, Message: "backend error"},
		errors.New("net/http: request timeout"),
	}
	for _, err := range retriable {
		if !IsRetryable(err) {
			t.Errorf("expected %v to be retriable", err)
		}
	}

	fatal := []error{
		&googleapi.Error{Code: 403, Message: "permission denied"},
		&googleapi.Error{Code: 400, Message: "bad range"},
		errors.New("header row is empty"),
		nil,
	}
	for _, err := range fatal {
		if IsRetryable(err) {
			t.Errorf("expected %v to be fatal", err)
		}
	}
}
