package audio_utils

import (
	"bytes"
	"math"
	"testing"

	"github.com/petrzlen/micbridge/pkg/models"
)

func TestInt16ToWaveform(t *testing.T) {
	input := []int16{0, 16384, -16384, 32767, -32768}
	want := []float64{0.0, 0.5, -0.5, 0.999969, -1.0}

	got := Int16ToWaveform(input)
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i])-want[i]) > 1e-6 {
			t.Errorf("sample %d: got %v, want ~%v", i, got[i], want[i])
		}
	}
}

func TestInt16ToWaveformRescales(t *testing.T) {
	// Every int16 survives normalize then rescale, the transform is exact.
	for s := math.MinInt16; s <= math.MaxInt16; s++ {
		f := models.NormalizeSample(int16(s))
		if f < -1.0 || f >= 1.0 {
			t.Fatalf("sample %d normalized out of range: %v", s, f)
		}
		if back := int(f * 32768); back != s {
			t.Fatalf("sample %d rescaled to %d", s, back)
		}
	}
}

func TestInt16ToWaveformEmpty(t *testing.T) {
	got := Int16ToWaveform(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil waveform", got)
	}
}

func TestTwoByteData(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 258}
	data := Int16SliceToTwoByteData(samples)
	if len(data) != 12 {
		t.Fatalf("len = %d, want 12", len(data))
	}
	if data[10] != 0x02 || data[11] != 0x01 {
		t.Errorf("258 encoded as % x, want little endian 02 01", data[10:])
	}
	back := TwoByteDataToInt16Slice(append(data, 0xff))
	if len(back) != len(samples) {
		t.Fatalf("decoded %d samples, want %d (odd trailing byte ignored)", len(back), len(samples))
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, back[i], samples[i])
		}
	}
}

func TestConvertInt16SamplesToWav(t *testing.T) {
	samples := []int16{0, 1000, -1000, 32767, -32768}
	wavData, err := ConvertInt16SamplesToWav(samples, models.SampleRate, models.NumChannels)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(wavData, []byte("RIFF")) {
		t.Fatalf("missing RIFF header: % x", wavData[:4])
	}

	decoded, info, err := DecodeFromWav(bytes.NewReader(wavData))
	if err != nil {
		t.Fatal(err)
	}
	if !info.Matches(models.DefaultCaptureConfig()) {
		t.Errorf("info = %+v, want 16k mono 16 bit", info)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(samples))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, decoded[i], samples[i])
		}
	}
}

func TestConvertInt16SamplesToWavEmpty(t *testing.T) {
	wavData, err := ConvertInt16SamplesToWav(nil, models.SampleRate, models.NumChannels)
	if err != nil {
		t.Fatal(err)
	}
	if len(wavData) != 0 {
		t.Errorf("got %d bytes for empty input", len(wavData))
	}
}

func TestDecodeFromWavRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeFromWav(bytes.NewReader([]byte("definitely not a wav file"))); err == nil {
		t.Error("expected an error")
	}
}
