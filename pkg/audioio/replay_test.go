package audioio

import (
	"testing"

	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

func writeWav(t *testing.T, fs afero.Fs, path string, samples []int16, sampleRate uint32) {
	t.Helper()
	wavData, err := audio_utils.ConvertInt16SamplesToWav(samples, sampleRate, models.NumChannels)
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, path, wavData, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestReplayReadsChunks(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWav(t, fs, "hello.wav", []int16{1, 2, 3, 4, 5}, models.SampleRate)

	handle, err := NewReplay(fs, "hello.wav").Open(models.DefaultCaptureConfig().WithChunkSize(2))
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Close()

	var lens []int
	var all []int16
	for i := 0; i < 4; i++ {
		chunk, err := handle.Read()
		if err != nil {
			t.Fatal(err)
		}
		lens = append(lens, len(chunk))
		all = append(all, chunk...)
	}
	if want := []int{2, 2, 1, 0}; !equalInts(lens, want) {
		t.Errorf("chunk lengths = %v, want %v", lens, want)
	}
	if len(all) != 5 || all[0] != 1 || all[4] != 5 {
		t.Errorf("samples = %v", all)
	}
	if rh := handle.(*replayHandle); rh.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", rh.Remaining())
	}
}

func TestReplaySingleHandle(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWav(t, fs, "a.wav", []int16{1}, models.SampleRate)
	binding := NewReplay(fs, "a.wav")

	first, err := binding.Open(models.DefaultCaptureConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := binding.Open(models.DefaultCaptureConfig()); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second open err = %v, want ErrAlreadyOpen", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := first.Read(); !errors.Is(err, ErrDeviceError) {
		t.Errorf("read after close err = %v, want ErrDeviceError", err)
	}

	again, err := binding.Open(models.DefaultCaptureConfig())
	if err != nil {
		t.Fatalf("open after close: %v", err)
	}
	dbg(again.Close())
}

func TestReplayRejects(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeWav(t, fs, "8k.wav", []int16{1, 2, 3}, 8000)
	if err := afero.WriteFile(fs, "broken.flac", []byte("not flac"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "song.mp3", []byte("ID3"), 0644); err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		name   string
		path   string
		config models.CaptureConfig
	}{
		{"wrong sample rate", "8k.wav", models.DefaultCaptureConfig()},
		{"broken flac", "broken.flac", models.DefaultCaptureConfig()},
		{"unknown extension", "song.mp3", models.DefaultCaptureConfig()},
		{"missing file", "nope.wav", models.DefaultCaptureConfig()},
		{"stereo config", "8k.wav", models.CaptureConfig{SampleRate: 16000, NumChannels: 2, BitDepth: 16, ChunkSize: 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			binding := NewReplay(fs, tc.path)
			if _, err := binding.Open(tc.config); !errors.Is(err, ErrPlatformUnavailable) {
				t.Fatalf("err = %v, want ErrPlatformUnavailable", err)
			}
			// A failed open must not leave the guard taken.
			if err := binding.(*replay).guard.acquire(); err != nil {
				t.Errorf("guard still held after failed open: %v", err)
			}
		})
	}
}

func TestHandleGuard(t *testing.T) {
	g := newHandleGuard("test")
	if err := g.acquire(); err != nil {
		t.Fatal(err)
	}
	if err := g.acquire(); !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("err = %v, want ErrAlreadyOpen", err)
	}
	release := g.releaser()
	release()
	release()
	if err := g.acquire(); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	// A stale releaser from the previous handle must not free the new one.
	release()
	if err := g.acquire(); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("stale release freed the guard, err = %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
