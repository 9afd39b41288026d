package sanitize

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		initial bool
		want    string
		dedup   bool
	}{
		{
			name: "plain text unchanged",
			raw:  "The smoke is too much, na! Please hurry!",
			want: "The smoke is too much, na! Please hurry!",
		},
		{
			name: "parenthesised direction",
			raw:  "(coughing) I can't breathe!",
			want: "I can't breathe!",
		},
		{
			name: "bracket and asterisk directions",
			raw:  "[gasps] The door is hot! *sobbing* Please!",
			want: "The door is hot!  Please!",
		},
		{
			name: "non-greedy stripping keeps text between spans",
			raw:  "(cough) Help (cough) me",
			want: "Help  me",
		},
		{
			name:  "exact duplicate collapses",
			raw:   "The fire is spreading fast! The fire is spreading fast!",
			want:  "The fire is spreading fast!",
			dedup: true,
		},
		{
			name:  "duplicate after stripping",
			raw:   "(gasp) Please come quickly now! Please come quickly now!",
			want:  "Please come quickly now!",
			dedup: true,
		},
		{
			name: "short duplicate left alone",
			raw:  "Help! Help!",
			want: "Help! Help!",
		},
		{
			name: "near duplicate left alone",
			raw:  "The fire is spreading fast! The fire is spreading fast!!",
			want: "The fire is spreading fast! The fire is spreading fast!!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.raw, tt.initial)
			if got.Text != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.raw, got.Text, tt.want)
			}
			if got.Deduplicated != tt.dedup {
				t.Errorf("Deduplicated = %v, want %v", got.Deduplicated, tt.dedup)
			}
			if got.Fallback {
				t.Error("unexpected fallback")
			}
		})
	}
}

func TestCleanFallback(t *testing.T) {
	t.Run("blank reply", func(t *testing.T) {
		got := Clean("   ", false)
		if !got.Fallback || got.Text != FallbackLine {
			t.Errorf("expected fallback line, got %+v", got)
		}
	})

	t.Run("blank initial reply", func(t *testing.T) {
		got := Clean("", true)
		if !got.Fallback || got.Text != InitialFallbackLine {
			t.Errorf("expected initial fallback line, got %+v", got)
		}
	})
}
