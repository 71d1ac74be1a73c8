package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BytesToSamples decodes 16-bit signed little-endian PCM into samples.
func BytesToSamples(pcmData []byte) ([]int16, error) {
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d", len(pcmData))
	}

	samples := make([]int16, len(pcmData)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcmData[i*2:]))
	}
	return samples, nil
}

// SamplesToBytes encodes samples as 16-bit signed little-endian PCM.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// CalculateRMS returns the root mean square level of samples
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, sample := range samples {
		sum += float64(sample) * float64(sample)
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// Tone renders a sine wave of the given frequency and duration as 16-bit PCM.
// A short linear fade at both ends avoids clicks between consecutive tones.
func Tone(sampleRate int, frequency float64, seconds float64, amplitude int16) []byte {
	n := int(float64(sampleRate) * seconds)
	if n <= 0 {
		return nil
	}

	fade := sampleRate / 100 // 10ms
	if fade*2 > n {
		fade = n / 2
	}

	samples := make([]int16, n)
	for i := range samples {
		gain := 1.0
		if fade > 0 {
			if i < fade {
				gain = float64(i) / float64(fade)
			} else if i >= n-fade {
				gain = float64(n-1-i) / float64(fade)
			}
		}
		v := math.Sin(2*math.Pi*frequency*float64(i)/float64(sampleRate)) * float64(amplitude) * gain
		samples[i] = int16(v)
	}
	return SamplesToBytes(samples)
}
