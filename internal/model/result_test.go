package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeLevel(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"26", 1},
		{"26.51", 2},
		{"26.51.52", 3},
		{"26.51.52.130", 4},
		{"", 0},
		{"abc", 0},
		{"26.", 0},
		{"2.51", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeLevel(tt.code), "code %q", tt.code)
	}
}

func TestIsValidOKPD2(t *testing.T) {
	assert.True(t, IsValidOKPD2("24.10.75"))
	assert.True(t, IsValidOKPD2("24.10.75.110"))
	assert.False(t, IsValidOKPD2("24-10-75"))
	assert.False(t, IsValidOKPD2("24.10.75."))
}

func TestRejectCarriesReason(t *testing.T) {
	out := Reject("Не подлежит нормализации: тест")
	assert.False(t, out.Accepted)
	assert.NotEmpty(t, out.Reason)

	ok := Accept()
	assert.True(t, ok.Accepted)
	assert.Empty(t, ok.Reason)
}
