package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("WC_TEST_BOOL", "yes")
	if !ParseBoolEnv("WC_TEST_BOOL", false) {
		t.Error("expected true for 'yes'")
	}
	t.Setenv("WC_TEST_BOOL", "off")
	if ParseBoolEnv("WC_TEST_BOOL", true) {
		t.Error("expected false for 'off'")
	}
	t.Setenv("WC_TEST_BOOL", "banana")
	if !ParseBoolEnv("WC_TEST_BOOL", true) {
		t.Error("expected default for invalid value")
	}
	if ParseBoolEnv("WC_TEST_BOOL_UNSET", false) {
		t.Error("expected default for unset value")
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("WC_TEST_INT", "42")
	if got := ParseIntEnv("WC_TEST_INT", 5); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
	t.Setenv("WC_TEST_INT", "not-a-number")
	if got := ParseIntEnv("WC_TEST_INT", 5); got != 5 {
		t.Errorf("expected default 5, got %d", got)
	}
	if got := ParseIntEnv("WC_TEST_INT_UNSET", 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("WC_TEST_STR", "value")
	if got := GetEnv("WC_TEST_STR", "fallback"); got != "value" {
		t.Errorf("expected 'value', got %q", got)
	}
	if got := GetEnv("WC_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}
