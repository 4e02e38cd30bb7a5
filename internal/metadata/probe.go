package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"media-catalog/internal/metrics"
)

type probeOutput struct {
	Streams []struct {
		Width    int               `json:"width"`
		Height   int               `json:"height"`
		Tags     map[string]string `json:"tags"`
		SideData []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
}

// probeVideo asks ffprobe for the first video stream's display dimensions.
// The process is killed when ProbeTimeout elapses.
func (e *Extractor) probeVideo(ctx context.Context, absPath string) (int, int, error) {
	bin := e.config.FFprobePath
	if bin == "" {
		bin = "ffprobe"
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:stream_tags=rotate:stream_side_data=rotation",
		"-print_format", "json",
		absPath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	metrics.MetadataProbeDuration.Observe(time.Since(start).Seconds())

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, 0, fmt.Errorf("ffprobe %s: %w", absPath, ErrProbeTimeout)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(stdout.Bytes())
}

func parseProbe(data []byte) (int, int, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(out.Streams) == 0 || out.Streams[0].Width <= 0 || out.Streams[0].Height <= 0 {
		return 0, 0, errors.New("ffprobe found no video stream")
	}

	s := out.Streams[0]
	rotation := s.Tags["rotate"]
	for _, sd := range s.SideData {
		if sd.Rotation != 0 {
			rotation = fmt.Sprint(int(sd.Rotation))
		}
	}
	switch strings.TrimPrefix(rotation, "-") {
	case "90", "270":
		return s.Height, s.Width, nil
	}
	return s.Width, s.Height, nil
}
