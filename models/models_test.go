package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/lottosync/syncerr"
)

func validDraw() *Draw {
	d := &Draw{DrawNo: 1150, DrawDate: "2024-12-14"}
	d.SetNumbers([]int{8, 9, 18, 35, 39, 40}, 25)
	for i := 1; i <= TierCount; i++ {
		d.Prizes = append(d.Prizes, Prize{Tier: i})
	}
	return d
}

func TestDrawValidate(t *testing.T) {
	require.NoError(t, validDraw().Validate())

	cases := map[string]func(d *Draw){
		"zero draw":      func(d *Draw) { d.DrawNo = 0 },
		"bad date":       func(d *Draw) { d.DrawDate = "2024.12.14" },
		"out of range":   func(d *Draw) { d.Num3 = 46 },
		"repeated":       func(d *Draw) { d.Num2 = d.Num1 },
		"bonus repeats":  func(d *Draw) { d.Bonus = d.Num6 },
		"bonus zero":     func(d *Draw) { d.Bonus = 0 },
		"missing tiers":  func(d *Draw) { d.Prizes = d.Prizes[:4] },
		"bad draw order": func(d *Draw) { d.DrawOrder = []int{1, 2, 3, 4, 5, 6, 7} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDraw()
			mutate(d)
			err := d.Validate()
			var ve *syncerr.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestDrawDetail(t *testing.T) {
	d := validDraw()
	assert.False(t, d.HasDetail())

	d.DrawOrder = []int{25, 40, 8, 39, 9, 35, 18}
	assert.True(t, d.HasDetail())
	assert.NoError(t, d.Validate())
}

func TestSameNumbers(t *testing.T) {
	assert.True(t, SameNumbers([]int{1, 2, 3}, []int{3, 1, 2}))
	assert.False(t, SameNumbers([]int{1, 1, 3}, []int{1, 3, 3}))
	assert.False(t, SameNumbers([]int{1, 2}, []int{1, 2, 3}))
}

func TestParseOrigin(t *testing.T) {
	cases := []struct {
		in   string
		want Origin
		ok   bool
	}{
		{"자동", OriginAuto, true},
		{" 반자동 ", OriginSemiAuto, true},
		{"수동", OriginManual, true},
		{"-", OriginUnspecified, true},
		{"모름", OriginUnspecified, false},
	}
	for _, c := range cases {
		got, ok := ParseOrigin(c.in)
		assert.Equal(t, c.want, got, c.in)
		assert.Equal(t, c.ok, ok, c.in)
	}
	assert.Equal(t, "semi-auto", OriginSemiAuto.String())
}
