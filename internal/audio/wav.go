package audio

import (
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Format describes a PCM stream: 16-bit signed little-endian, interleaved
type Format struct {
	SampleRate int
	Channels   int
}

// EncodeWAV writes samples as a 16-bit PCM WAV into ws.
// The encoder seeks back to patch the RIFF header, so ws must be seekable.
func EncodeWAV(ws io.WriteSeeker, samples []int16, format Format) error {
	if format.SampleRate <= 0 || format.Channels <= 0 {
		return fmt.Errorf("invalid wav format %+v", format)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(ws, format.SampleRate, 16, format.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteWAVFile creates path and encodes samples into it
func WriteWAVFile(path string, samples []int16, format Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(file, samples, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadWAVFile decodes a 16-bit PCM WAV file
func ReadWAVFile(path string) ([]int16, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Format{}, fmt.Errorf("open wav: %w", err)
	}
	defer file.Close()

	buf, err := wav.NewDecoder(file).FullPCMBuffer()
	if err != nil {
		return nil, Format{}, fmt.Errorf("decode wav: %w", err)
	}
	if buf.Format == nil {
		return nil, Format{}, fmt.Errorf("%s has no format chunk", path)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = int16(v)
	}
	return samples, Format{SampleRate: buf.Format.SampleRate, Channels: buf.Format.NumChannels}, nil
}
