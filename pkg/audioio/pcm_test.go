package audioio

import (
	"math"
	"testing"
)

func TestResample(t *testing.T) {
	t.Run("same rate", func(t *testing.T) {
		in := []int16{1, 2, 3}
		if out := Resample(in, 16000, 16000); len(out) != 3 {
			t.Errorf("expected 3 samples, got %d", len(out))
		}
	})

	t.Run("downsample 48k to 16k", func(t *testing.T) {
		in := make([]int16, 960)
		out := Resample(in, 48000, 16000)
		if len(out) != 320 {
			t.Errorf("expected 320 samples, got %d", len(out))
		}
	})

	t.Run("upsample interpolates", func(t *testing.T) {
		out := Resample([]int16{0, 100}, 8000, 16000)
		if len(out) != 4 {
			t.Fatalf("expected 4 samples, got %d", len(out))
		}
		if out[1] != 50 {
			t.Errorf("expected midpoint 50, got %d", out[1])
		}
	})

	t.Run("empty", func(t *testing.T) {
		if out := Resample(nil, 48000, 16000); len(out) != 0 {
			t.Errorf("expected empty, got %d", len(out))
		}
	})
}

func TestBytesRoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out := BytesToSamples(SamplesToBytes(in))
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d: %d != %d", i, in[i], out[i])
		}
	}
}

func TestDownmix(t *testing.T) {
	stereo := []int16{100, 200, -50, 50}
	mono := Downmix(stereo, 2)
	if len(mono) != 2 || mono[0] != 150 || mono[1] != 0 {
		t.Errorf("unexpected downmix %v", mono)
	}
	if got := Downmix(stereo, 1); len(got) != 4 {
		t.Error("mono input should pass through")
	}
}

func TestConvertPCM(t *testing.T) {
	// 10ms of 48kHz stereo -> 10ms of 24kHz mono
	data := SamplesToBytes(make([]int16, 480*2))
	out := ConvertPCM(data, 48000, 2, 24000)
	if len(out) != 240*2 {
		t.Errorf("expected 480 bytes, got %d", len(out))
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("expected 0 for empty")
	}
	if RMS([]int16{0, 0, 0}) != 0 {
		t.Error("expected 0 for silence")
	}
	full := RMS([]int16{32767, -32767, 32767})
	if math.Abs(full-1) > 0.01 {
		t.Errorf("expected ~1.0 for full scale, got %f", full)
	}
}
