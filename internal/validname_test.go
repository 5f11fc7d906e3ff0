package internal

import "testing"

func TestGood(t *testing.T) {
	var goodStrings = []string{
		"_",
		"a",
		"1",
		"0°",
		"temp",
		"float",
	}
	for i := range goodStrings {
		if !IsValidName(goodStrings[i]) {
			t.Error("name should be good", goodStrings[i])
			return
		}
	}
}

func TestBad(t *testing.T) {
	var badStrings = []string{
		"",
		"_ ",
		"/",
		"no/good",
		"\ta ",
		"1\t",
		"°",
		"°C",
		"\x08",
		"__labels",
	}
	for i := range badStrings {
		if IsValidName(badStrings[i]) {
			t.Error("name should be bad", badStrings[i])
			return
		}
	}
}

func TestJoinFullName(t *testing.T) {
	tests := []struct {
		parent, name, want string
	}{
		{"", "a", "/a"},
		{"/", "a", "/a"},
		{"/a", "b", "/a/b"},
	}
	for _, tt := range tests {
		if got := JoinFullName(tt.parent, tt.name); got != tt.want {
			t.Errorf("JoinFullName(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.want)
		}
	}
}
