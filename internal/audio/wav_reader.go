package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// wavReader decodes a canonical PCM WAV file (16-bit or 32-bit float) into
// mono float32 samples, for the File replay source. Archival/writing is out
// of scope: this package only ever reads WAV, it never produces one.
type wavReader struct {
	sampleRate int
	channels   int
	samples    []float32 // mono, averaged down from the file's channel count
}

func newWAVReader(path string) (*wavReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	var riffHeader [12]byte
	if _, err := io.ReadFull(f, riffHeader[:]); err != nil {
		return nil, fmt.Errorf("read wav riff header: %w", err)
	}
	if string(riffHeader[0:4]) != "RIFF" || string(riffHeader[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		audioFormat   uint16
		pcm           []byte
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(f, chunkHeader[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read wav chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			audioFormat = binary.LittleEndian.Uint16(body[0:2])
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, fmt.Errorf("read wav data chunk: %w", err)
			}
			pcm = body
		default:
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, fmt.Errorf("skip wav chunk %q: %w", chunkID, err)
			}
		}
		if chunkSize%2 == 1 {
			f.Seek(1, io.SeekCurrent) // chunks are word-aligned
		}
	}

	if channels == 0 || sampleRate == 0 || pcm == nil {
		return nil, fmt.Errorf("incomplete wav file: missing fmt or data chunk")
	}

	mono, err := decodeWAVSamples(pcm, channels, bitsPerSample, audioFormat)
	if err != nil {
		return nil, err
	}

	return &wavReader{sampleRate: sampleRate, channels: channels, samples: mono}, nil
}

// decodeWAVSamples converts interleaved PCM into mono float32, averaging
// channels per spec §4.1's mixdown rule.
func decodeWAVSamples(pcm []byte, channels, bitsPerSample int, audioFormat uint16) ([]float32, error) {
	const (
		formatPCM   = 1
		formatFloat = 3
	)
	bytesPerSample := bitsPerSample / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("invalid wav bits-per-sample: %d", bitsPerSample)
	}
	frameSize := bytesPerSample * channels
	if frameSize == 0 {
		return nil, fmt.Errorf("invalid wav frame size")
	}
	numFrames := len(pcm) / frameSize
	mono := make([]float32, numFrames)

	for i := 0; i < numFrames; i++ {
		var sum float32
		base := i * frameSize
		for c := 0; c < channels; c++ {
			off := base + c*bytesPerSample
			var v float32
			switch {
			case audioFormat == formatFloat && bitsPerSample == 32:
				bits := binary.LittleEndian.Uint32(pcm[off:])
				v = math.Float32frombits(bits)
			case audioFormat == formatPCM && bitsPerSample == 16:
				v = float32(int16(binary.LittleEndian.Uint16(pcm[off:]))) / 32768.0
			case audioFormat == formatPCM && bitsPerSample == 8:
				v = (float32(pcm[off]) - 128) / 128.0
			case audioFormat == formatPCM && bitsPerSample == 32:
				v = float32(int32(binary.LittleEndian.Uint32(pcm[off:]))) / 2147483648.0
			default:
				return nil, fmt.Errorf("unsupported wav format (format=%d bits=%d)", audioFormat, bitsPerSample)
			}
			sum += v
		}
		mono[i] = sum / float32(channels)
	}
	return mono, nil
}
