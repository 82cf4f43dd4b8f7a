package game

import (
	"strings"
	"testing"
)

func TestIsRollRequest(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{DiceButtonLabel, true},
		{"  " + DiceButtonLabel + "  ", true},
		{strings.ToUpper(DiceButtonLabel), true},
		{"roll the dice", true},
		{"Roll The Dice", true},
		{"ROLL THE DICE", true},
		{"I roll the dice down the hill", false},
		{"roll the dice twice", false},
		{"dice", false},
		{"I attack the goblin", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsRollRequest(tc.text); got != tc.want {
			t.Errorf("IsRollRequest(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestRollD20Range(t *testing.T) {
	for i := 0; i < 1000; i++ {
		if r := rollD20(); r < 1 || r > 20 {
			t.Fatalf("rollD20() = %d, out of [1, 20]", r)
		}
	}
}

// Chi-square goodness of fit over 20 faces, 19 degrees of freedom. The
// threshold is the 0.999 quantile (~43.8) with headroom; a uniform die
// fails this about once in ten thousand runs.
func TestRollD20Uniformity(t *testing.T) {
	const draws = 20000
	var counts [21]int
	for i := 0; i < draws; i++ {
		counts[rollD20()]++
	}

	expected := float64(draws) / 20
	var chi2 float64
	for face := 1; face <= 20; face++ {
		d := float64(counts[face]) - expected
		chi2 += d * d / expected
	}
	if chi2 > 55 {
		t.Fatalf("chi-square = %.2f over %d draws, die looks biased: %v", chi2, draws, counts[1:])
	}
	for face := 1; face <= 20; face++ {
		if counts[face] == 0 {
			t.Fatalf("face %d never drawn in %d rolls", face, draws)
		}
	}
}

func TestRollDirectiveMentionsResult(t *testing.T) {
	d := rollDirective(13)
	if !strings.Contains(d, "13") {
		t.Fatalf("rollDirective(13) = %q, missing the result", d)
	}
	if strings.Contains(d, DiceButtonLabel) {
		t.Fatalf("rollDirective leaked the button label: %q", d)
	}
}
