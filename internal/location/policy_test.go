package location

import "testing"

func TestPolicyMerge(t *testing.T) {
	primary := Place{Country: "", City: "Berlin"}
	enriched := Place{Country: "Germany", City: "Munich"}

	tests := []struct {
		policy Policy
		want   Place
	}{
		{PolicyFillMissing, Place{Country: "Germany", City: "Berlin"}},
		{PolicyAlwaysOverride, Place{Country: "Germany", City: "Munich"}},
		{PolicyOff, primary},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			if got := tt.policy.Merge(primary, enriched); got != tt.want {
				t.Errorf("Merge() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPolicyOverrideKeepsPrimaryWhenEnrichedEmpty(t *testing.T) {
	primary := Place{Country: "France", City: "Lyon", CountryCode: "FR"}
	got := PolicyAlwaysOverride.Merge(primary, Place{City: "Villeurbanne"})
	want := Place{Country: "France", City: "Villeurbanne", CountryCode: "FR"}
	if got != want {
		t.Errorf("Merge() = %+v, want %+v", got, want)
	}
}

func TestPolicyShouldEnrich(t *testing.T) {
	complete := Place{Country: "Italy", City: "Rome", CountryCode: "IT"}
	partial := Place{Country: "Italy"}

	tests := []struct {
		policy Policy
		place  Place
		want   bool
	}{
		{PolicyFillMissing, complete, false},
		{PolicyFillMissing, partial, true},
		{PolicyAlwaysOverride, complete, true},
		{PolicyOff, partial, false},
	}
	for _, tt := range tests {
		if got := tt.policy.ShouldEnrich(tt.place); got != tt.want {
			t.Errorf("%s.ShouldEnrich(%+v) = %v, want %v", tt.policy, tt.place, got, tt.want)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyFillMissing, false},
		{"fill-missing", PolicyFillMissing, false},
		{"ALWAYS", PolicyAlwaysOverride, false},
		{"always-override", PolicyAlwaysOverride, false},
		{"off", PolicyOff, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
