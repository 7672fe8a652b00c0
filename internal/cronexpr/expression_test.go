package cronexpr

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "* * * * *", want: "* * * * *"},
		{in: "  0   4 *  * 1-5 ", want: "0 4 * * 1-5"},
		{in: "*/6 * * * *", want: "*/6 * * * *"},
		{in: "0 0 1 1-12/3 *", want: "0 0 1 1-12/3 *"},
		{in: "0,30 * * * *", want: "0,30 * * * *"},
		{in: "* * * *", wantErr: true},
		{in: "0 * * * * *", wantErr: true},
		{in: "@daily", wantErr: true},
		{in: "61 * * * *", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("Parse(%q) err = %v, want ErrInvalid", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Fatalf("Parse(%q) = %q, want %q", tt.in, got.String(), tt.want)
			}
		})
	}
}

func TestZeroValueIsEveryMinute(t *testing.T) {
	t.Parallel()

	var e Expression
	if e.String() != DefaultExpression {
		t.Fatalf("zero value = %q, want %q", e.String(), DefaultExpression)
	}
	if !e.Equal(Default()) {
		t.Fatalf("zero value should equal Default()")
	}
}

func TestSpliceReplacesExactlyOneField(t *testing.T) {
	t.Parallel()

	base := MustParse("1 2 3 4 5")
	for pos := Minute; pos <= DayOfWeek; pos++ {
		got, err := base.Splice(pos, "*")
		if err != nil {
			t.Fatalf("Splice(%d) unexpected error: %v", pos, err)
		}
		for other := Minute; other <= DayOfWeek; other++ {
			want := base.Field(other)
			if other == pos {
				want = "*"
			}
			if got.Field(other) != want {
				t.Fatalf("Splice(%d): field %d = %q, want %q", pos, other, got.Field(other), want)
			}
		}
	}
	if base.String() != "1 2 3 4 5" {
		t.Fatalf("receiver mutated: %q", base.String())
	}
}

func TestSpliceRejectsInvalid(t *testing.T) {
	t.Parallel()

	base := Default()
	cases := []struct {
		pos   int
		value string
	}{
		{0, "1"},
		{6, "1"},
		{Hour, "25"},
		{Minute, ""},
		{Minute, "1 2"},
	}
	for _, c := range cases {
		got, err := base.Splice(c.pos, c.value)
		if !errors.Is(err, ErrInvalid) {
			t.Fatalf("Splice(%d, %q) err = %v, want ErrInvalid", c.pos, c.value, err)
		}
		if !got.Equal(base) {
			t.Fatalf("Splice(%d, %q) returned %q, want unchanged", c.pos, c.value, got)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := map[string]FieldKind{
		"*":      KindWildcard,
		"5":      KindLiteral,
		"1,3,5":  KindList,
		"1-5":    KindRange,
		"*/6":    KindStep,
		"1-12/3": KindStep,
		"0,30":   KindList,
	}
	for in, want := range tests {
		if got := Classify(in); got != want {
			t.Fatalf("Classify(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestIsDue(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, time.March, 2, 4, 0, 37, 0, time.UTC) // Monday
	tests := []struct {
		expr string
		want bool
	}{
		{"* * * * *", true},
		{"0 4 * * *", true},
		{"0 4 * * 1-5", true},
		{"0 4 * * 0", false},
		{"1 4 * * *", false},
		{"*/6 * * * *", true},
		{"0 0 * * *", false},
		{"0 4 2 3 *", true},
	}
	for _, tt := range tests {
		got, err := IsDue(MustParse(tt.expr), at)
		if err != nil {
			t.Fatalf("IsDue(%q) unexpected error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Fatalf("IsDue(%q, %s) = %v, want %v", tt.expr, at, got, tt.want)
		}
	}
}

func TestIsDueUsesWallClockOfLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	at := time.Date(2026, time.March, 2, 1, 0, 0, 0, time.UTC)

	due, err := IsDue(MustParse("0 4 * * *"), at.In(loc))
	if err != nil {
		t.Fatalf("IsDue unexpected error: %v", err)
	}
	if !due {
		t.Fatalf("expected 04:00 in UTC+3 to be due at 01:00 UTC")
	}
	due, _ = IsDue(MustParse("0 4 * * *"), at)
	if due {
		t.Fatalf("expected 04:00 not due at 01:00 UTC wall clock")
	}
}

func TestIsDueWithSecondsOffsetZone(t *testing.T) {
	t.Parallel()

	// Local mean time zones carry offsets that are not whole minutes.
	lmt := time.FixedZone("LMT", 32)
	at := time.Date(2026, time.March, 2, 4, 0, 10, 0, lmt)

	tests := []struct {
		expr string
		want bool
	}{
		{"0 4 * * *", true},
		{"* * * * *", true},
		{"59 3 * * *", false},
		{"1 4 * * *", false},
	}
	for _, tt := range tests {
		got, err := IsDue(MustParse(tt.expr), at)
		if err != nil {
			t.Fatalf("IsDue(%q) unexpected error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Fatalf("IsDue(%q, %s) = %v, want %v", tt.expr, at, got, tt.want)
		}
	}
}

func TestNext(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, time.March, 2, 4, 0, 0, 0, time.UTC)
	got, err := Next(MustParse("0 */6 * * *"), from, 3)
	if err != nil {
		t.Fatalf("Next unexpected error: %v", err)
	}
	want := []time.Time{
		time.Date(2026, time.March, 2, 6, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, 2, 18, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("Next len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("Next[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if out, _ := Next(Default(), from, 0); out != nil {
		t.Fatalf("Next(n=0) = %v, want nil", out)
	}
}
