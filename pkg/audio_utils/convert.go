package audio_utils

import (
	"encoding/binary"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/petrzlen/micbridge/pkg/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const pcmAudioFormat = 1

func dbg(err error) {
	if err != nil {
		log.Debug().Err(err).Msg("sth non-essential failed")
	}
}

// Int16ToWaveform is the only numeric transform we do: s / 32768.0, no dithering, no resampling.
func Int16ToWaveform(samples []int16) models.Waveform {
	result := make(models.Waveform, len(samples))
	for i, s := range samples {
		result[i] = models.NormalizeSample(s)
	}
	return result
}

// TwoByteDataToInt16Slice assumes S16LE, a trailing odd byte is ignored.
func TwoByteDataToInt16Slice(audioData []byte) []int16 {
	result := make([]int16, len(audioData)/2)
	for i := range result {
		result[i] = int16(binary.LittleEndian.Uint16(audioData[2*i : 2*i+2]))
	}
	return result
}

func Int16SliceToTwoByteData(samples []int16) []byte {
	result := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(result[2*i:], uint16(s))
	}
	return result
}

// ConvertInt16SamplesToWav encodes S16 samples into an in-memory PCM wav.
func ConvertInt16SamplesToWav(samples []int16, sampleRate uint32, numChannels uint32) (result []byte, err error) {
	intData := make([]int, len(samples))
	for i, s := range samples {
		intData[i] = int(s)
	}
	inputBuffer := &audio.IntBuffer{
		Data: intData,
		Format: &audio.Format{
			SampleRate:  int(sampleRate),
			NumChannels: int(numChannels),
		},
		SourceBitDepth: 16,
	}
	return convertIntSamplesToWav(inputBuffer)
}

func convertIntSamplesToWav(inputBuffer *audio.IntBuffer) (result []byte, err error) {
	if len(inputBuffer.Data) == 0 {
		return // Nothing to do
	}

	// wav.NewEncoder needs an io.WriteSeeker to finalize headers, so we go through an in-memory file.
	fs := afero.NewMemMapFs()
	inMemoryFilename := "in-memory-output.wav"
	inMemoryFile, err := fs.Create(inMemoryFilename)
	if err != nil {
		err = errors.Wrap(err, "cannot create in-memory wav file")
		return
	}

	outputBitDepth := 16
	wavEncoder := wav.NewEncoder(inMemoryFile, inputBuffer.Format.SampleRate, outputBitDepth, inputBuffer.Format.NumChannels, pcmAudioFormat)
	log.Debug().Int("int_data_length", len(inputBuffer.Data)).Int("sample_rate", inputBuffer.Format.SampleRate).Int("num_channels", inputBuffer.Format.NumChannels).Msg("encoding int stream output as a wav")
	if err = wavEncoder.Write(inputBuffer); err != nil {
		err = errors.Wrap(err, "cannot encode samples as wav")
		return
	}
	// Flushes remaining data and finalizes the header.
	if err = wavEncoder.Close(); err != nil {
		err = errors.Wrap(err, "cannot finish wav encoding")
		return
	}

	dbg(inMemoryFile.Close())
	inMemoryFileReopen, err := fs.Open(inMemoryFilename)
	if err != nil {
		err = errors.Wrap(err, "cannot reopen in-memory wav file")
		return
	}
	defer func() { dbg(inMemoryFileReopen.Close()) }()
	result, err = io.ReadAll(inMemoryFileReopen)
	if err == nil && len(result) == 0 {
		err = errors.New("wav output is empty when input was not")
	}
	return
}

// PCMInfo describes a decoded file, the replay binding checks it against models.CaptureConfig.
type PCMInfo struct {
	SampleRate  uint32
	NumChannels uint32
	BitDepth    uint32
}

func (p PCMInfo) Matches(config models.CaptureConfig) bool {
	return p.SampleRate == config.SampleRate && p.NumChannels == config.NumChannels && p.BitDepth == config.BitDepth
}

// DecodeFromWav reads an entire PCM wav.
func DecodeFromWav(r io.ReadSeeker) (samples []int16, info PCMInfo, err error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		err = errors.New("not a valid wav file")
		return
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		err = errors.Wrap(err, "cannot decode wav")
		return
	}
	info = PCMInfo{
		SampleRate:  decoder.SampleRate,
		NumChannels: uint32(decoder.NumChans),
		BitDepth:    uint32(decoder.BitDepth),
	}
	samples = intsToInt16(buf.Data)
	return
}

// DecodeFromFlac reads an entire flac stream, interleaving channels.
func DecodeFromFlac(r io.Reader) (samples []int16, info PCMInfo, err error) {
	stream, err := flac.New(r)
	if err != nil {
		err = errors.Wrap(err, "cannot open flac stream")
		return
	}
	defer func() { dbg(stream.Close()) }()

	info = PCMInfo{
		SampleRate:  stream.Info.SampleRate,
		NumChannels: uint32(stream.Info.NChannels),
		BitDepth:    uint32(stream.Info.BitsPerSample),
	}
	for {
		frame, parseErr := stream.ParseNext()
		if parseErr == io.EOF {
			break
		}
		if parseErr != nil {
			err = errors.Wrap(parseErr, "cannot parse flac frame")
			return
		}
		if len(frame.Subframes) == 0 {
			continue
		}
		for i := range frame.Subframes[0].Samples {
			for _, subframe := range frame.Subframes {
				samples = append(samples, int16(subframe.Samples[i]))
			}
		}
	}
	return
}

func intsToInt16(data []int) []int16 {
	result := make([]int16, len(data))
	for i, v := range data {
		result[i] = int16(v)
	}
	return result
}
