package wizard

import (
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Encode/Decode round trips
// ---------------------------------------------------------------------------

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		step   string
		fields []string
	}{
		{StepProvider, nil},
		{StepWorkspace, []string{"ollama"}},
		{StepRole, []string{"cursor", "/home/u/repo"}},
		{StepModel, []string{"claude", "builder", "/srv/work"}},
		{StepAuto, []string{"ollama", "tester", "/tmp/x"}},
	}
	for _, tc := range cases {
		token, err := Encode(tc.step, tc.fields...)
		if err != nil {
			t.Fatalf("Encode(%s, %v): %v", tc.step, tc.fields, err)
		}
		got, err := Decode(tc.step, token)
		if err != nil {
			t.Fatalf("Decode(%s, %q): %v", tc.step, token, err)
		}
		if len(got) != len(tc.fields) {
			t.Fatalf("Decode(%s): got %d fields, want %d", tc.step, len(got), len(tc.fields))
		}
		for i := range got {
			if got[i] != tc.fields[i] {
				t.Errorf("Decode(%s): field %d: got %q, want %q", tc.step, i, got[i], tc.fields[i])
			}
		}
	}
}

func TestDecode_TrailingFieldKeepsDelimiter(t *testing.T) {
	token, err := Encode(StepRole, "cursor", "/home/u/my:repo")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	fields, err := Decode(StepRole, token)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if fields[0] != "cursor" {
		t.Errorf("provider: got %q, want %q", fields[0], "cursor")
	}
	if fields[1] != "/home/u/my:repo" {
		t.Errorf("workspace: got %q, want %q", fields[1], "/home/u/my:repo")
	}
}

// ---------------------------------------------------------------------------
// Failure modes
// ---------------------------------------------------------------------------

func TestDecode_TooFewFields(t *testing.T) {
	_, err := Decode(StepModel, "run-adv-model:claude")
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("got err %v, want ErrMalformedToken", err)
	}
}

func TestDecode_WrongStep(t *testing.T) {
	token, _ := Encode(StepWorkspace, "ollama")
	_, err := Decode(StepRole, token)
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("got err %v, want ErrMalformedToken", err)
	}
}

func TestDecode_UnknownStep(t *testing.T) {
	if _, err := Decode("run-adv-bogus", "run-adv-bogus:x"); err == nil {
		t.Fatal("expected error for unknown step")
	}
}

func TestEncode_WrongArity(t *testing.T) {
	if _, err := Encode(StepWorkspace, "a", "b"); err == nil {
		t.Fatal("expected error for wrong field count")
	}
}

func TestEncode_TokenTooLong(t *testing.T) {
	long := strings.Repeat("d", MaxTokenLen)
	if _, err := Encode(StepWorkspace, long); err == nil {
		t.Fatal("expected error for oversized token")
	}
}

func TestStepOf(t *testing.T) {
	step, ok := StepOf("run-adv-role:cursor:/home/u/my:repo")
	if !ok || step != StepRole {
		t.Fatalf("got (%q, %v), want (%q, true)", step, ok, StepRole)
	}
	if _, ok := StepOf("something-else:x"); ok {
		t.Fatal("unknown prefix should not resolve to a step")
	}
}
