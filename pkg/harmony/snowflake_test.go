package harmony

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseSnowflake(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Snowflake
		wantErr bool
	}{
		{name: "valid id", raw: "175928847299117063", want: 175928847299117063},
		{name: "zero", raw: "0", want: 0},
		{name: "not a number", raw: "abc", wantErr: true},
		{name: "negative", raw: "-5", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseSnowflake(testCase.raw)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected parse error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("parsed %d, want %d", got, testCase.want)
			}
		})
	}
}

func TestSnowflakeTime(t *testing.T) {
	t.Parallel()

	// 175928847299117063 was generated at 2016-04-30T11:18:25.796Z.
	id := Snowflake(175928847299117063)
	want := time.Date(2016, time.April, 30, 11, 18, 25, 796*int(time.Millisecond), time.UTC)
	if got := id.Time(); !got.Equal(want) {
		t.Fatalf("embedded time %v, want %v", got, want)
	}
}

func TestSnowflakeFromTimeOrdering(t *testing.T) {
	t.Parallel()

	instant := time.Date(2020, time.June, 1, 12, 0, 0, 0, time.UTC)
	boundary := SnowflakeFromTime(instant)

	if got := boundary.Time(); !got.Equal(instant) {
		t.Fatalf("boundary time %v, want %v", got, instant)
	}

	earlier := SnowflakeFromTime(instant.Add(-time.Millisecond))
	later := SnowflakeFromTime(instant.Add(time.Millisecond))
	if !(earlier < boundary && boundary < later) {
		t.Fatalf("boundary snowflakes not time-ordered: %d %d %d", earlier, boundary, later)
	}

	if got := SnowflakeFromTime(time.UnixMilli(Epoch - 1)); got != 0 {
		t.Fatalf("pre-epoch instant produced %d, want 0", got)
	}
}

func TestSnowflakeJSON(t *testing.T) {
	t.Parallel()

	encoded, err := json.Marshal(Snowflake(42))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(encoded) != `"42"` {
		t.Fatalf("marshaled %s, want %q", encoded, `"42"`)
	}

	var fromString Snowflake
	if err := json.Unmarshal([]byte(`"42"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	var fromNumber Snowflake
	if err := json.Unmarshal([]byte(`42`), &fromNumber); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if fromString != 42 || fromNumber != 42 {
		t.Fatalf("unmarshaled %d and %d, want 42", fromString, fromNumber)
	}

	var fromNull Snowflake
	if err := json.Unmarshal([]byte(`null`), &fromNull); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if fromNull != 0 {
		t.Fatalf("unmarshaled null as %d, want 0", fromNull)
	}
}
