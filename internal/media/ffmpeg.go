// Package media wraps the ffprobe and ffmpeg binaries used to inspect
// downloaded videos and extract their audio track.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoAudioStream is returned when a container holds no audio stream.
var ErrNoAudioStream = errors.New("media: no audio stream")

// Info describes an opened media container.
type Info struct {
	// Duration in seconds; nil when the container does not report one.
	Duration *float64
	HasAudio bool
}

// FFmpeg runs ffprobe/ffmpeg as child processes.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// New creates an FFmpeg adapter. Empty paths fall back to the binaries on PATH.
func New(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.ffprobePath)
	return err == nil
}

// Probe opens the container at path and reads its duration and stream layout.
func (f *FFmpeg) Probe(ctx context.Context, path string) (Info, error) {
	// #nosec G204 -- path is a workspace-owned file
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return ParseProbe(out)
}

// ExtractAudio writes the audio track of videoPath to audioPath as MP3.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, audioPath string) error {
	// #nosec G204 -- both paths are workspace-owned files
	cmd := exec.CommandContext(ctx, f.ffmpegPath,
		"-y",
		"-v", "error",
		"-i", videoPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		audioPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg extract audio: %w - output: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Duration  string `json:"duration"`
	} `json:"streams"`
}

// ParseProbe decodes ffprobe's JSON report.
func ParseProbe(data []byte) (Info, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Info{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var info Info
	info.Duration = parseSeconds(out.Format.Duration)
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.HasAudio = true
		if info.Duration == nil {
			info.Duration = parseSeconds(s.Duration)
		}
	}
	return info, nil
}

func parseSeconds(s string) *float64 {
	if s == "" || s == "N/A" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}
