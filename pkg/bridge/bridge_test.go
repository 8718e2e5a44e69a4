package bridge

import (
	"testing"

	"github.com/petrzlen/micbridge/pkg/audio_utils"
	"github.com/petrzlen/micbridge/pkg/audioio"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/petrzlen/micbridge/pkg/recorder"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

func TestNotInitialized(t *testing.T) {
	if err := Start(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Start err = %v", err)
	}
	if _, err := ReadAudio(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ReadAudio err = %v", err)
	}
	if _, err := Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Stop err = %v", err)
	}
	if IsRecording() {
		t.Error("recording without a session")
	}
}

func TestReplayThroughBridge(t *testing.T) {
	fs := afero.NewMemMapFs()
	wavData, err := audio_utils.ConvertInt16SamplesToWav([]int16{100, 200, 300}, models.SampleRate, models.NumChannels)
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "in.wav", wavData, 0644); err != nil {
		t.Fatal(err)
	}

	appContext := struct{ name string }{"host"}
	err = Initialize(appContext,
		WithBinding(audioio.NewReplay(fs, "in.wav")),
		WithSessionOptions(recorder.WithConfig(models.DefaultCaptureConfig().WithChunkSize(2))),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Shutdown(); err != nil {
			t.Error(err)
		}
	}()
	// Second Initialize keeps the first session.
	if err := Initialize(nil); err != nil {
		t.Fatal(err)
	}

	if err := Start(); err != nil {
		t.Fatal(err)
	}
	if !IsRecording() {
		t.Fatal("not recording after Start")
	}
	chunk, err := ReadAudio()
	if err != nil {
		t.Fatal(err)
	}
	if len(chunk) != 2 {
		t.Errorf("first chunk = %v, want 2 samples", chunk)
	}
	waveform, err := Stop()
	if err != nil {
		t.Fatal(err)
	}
	if len(waveform) != 3 {
		t.Fatalf("waveform = %v, want 3 samples", waveform)
	}
	if waveform[2] != float32(300.0/32768.0) {
		t.Errorf("waveform[2] = %v", waveform[2])
	}
	if IsRecording() {
		t.Error("still recording after Stop")
	}
}
