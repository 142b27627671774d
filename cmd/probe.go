package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"net/http"
	"os"
	"time"

	gomjpeg "github.com/mattn/go-mjpeg"
	"github.com/spf13/cobra"

	"github.com/smazurov/camrelay/internal/mjpeg"
	"github.com/smazurov/camrelay/internal/version"
)

// ProbeResult summarises a probe run.
type ProbeResult struct {
	ContentType string
	Frames      int
	Width       int
	Height      int
	Bytes       int
	Elapsed     time.Duration
	Last        []byte
}

// FPS is the observed frame rate over the probe.
func (r ProbeResult) FPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var frames int
	var timeout time.Duration
	var save string

	cmd := &cobra.Command{
		Use:   "probe <stream-url>",
		Short: "Check that a camera serves a decodable MJPEG stream",
		Long: `Connects to the camera, reads a few multipart frames, verifies each one is a ` +
			`complete JPEG and reports resolution and frame rate. Nothing is written to a device.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			res, err := Probe(ctx, http.DefaultClient, args[0], frames)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "content-type: %s\n", res.ContentType)
			fmt.Fprintf(out, "frames:       %d\n", res.Frames)
			fmt.Fprintf(out, "resolution:   %dx%d\n", res.Width, res.Height)
			fmt.Fprintf(out, "bytes:        %d\n", res.Bytes)
			fmt.Fprintf(out, "fps:          %.1f\n", res.FPS())

			if save != "" {
				if err := os.WriteFile(save, res.Last, 0o644); err != nil {
					return fmt.Errorf("save frame: %w", err)
				}
				fmt.Fprintf(out, "saved:        %s\n", save)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&frames, "frames", "n", 10, "Number of frames to read")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "Give up after this long")
	cmd.Flags().StringVarP(&save, "save", "o", "", "Write the last frame to this file")
	return cmd
}

// Probe reads up to n frames from a multipart MJPEG endpoint. Every part
// must hold exactly one complete JPEG that decodes.
func Probe(ctx context.Context, client *http.Client, url string, n int) (ProbeResult, error) {
	var res ProbeResult
	if n <= 0 {
		n = 1
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := client.Do(req)
	if err != nil {
		return res, fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return res, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	res.ContentType = resp.Header.Get("Content-Type")

	dec, err := gomjpeg.NewDecoderFromResponse(resp)
	if err != nil {
		return res, fmt.Errorf("not a multipart stream: %w", err)
	}

	scanner := mjpeg.NewScanner(mjpeg.DefaultMaxFrameSize)
	start := time.Now()
	for res.Frames < n {
		part, err := dec.DecodeRaw()
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", res.Frames+1, err)
		}

		found := scanner.Feed(part)
		if len(found) != 1 {
			return res, fmt.Errorf("frame %d: part holds %d complete JPEGs", res.Frames+1, len(found))
		}
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(found[0]))
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", res.Frames+1, err)
		}

		res.Frames++
		res.Width, res.Height = cfg.Width, cfg.Height
		res.Bytes += len(found[0])
		res.Last = found[0]
		scanner.Reset()
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
