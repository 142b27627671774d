package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/camrelay/pkg/linuxav/hotplug"
	"github.com/smazurov/camrelay/pkg/linuxav/v4l2"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var all bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List V4L2 output devices",
		Long:  `Lists video devices that accept frames, such as v4l2loopback nodes, with the formats they currently offer.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			find := v4l2.FindOutputDevices
			if all {
				find = v4l2.FindDevices
			}
			devices, err := find()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "no devices found (is v4l2loopback loaded?)")
			}
			for _, dev := range devices {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", dev.DevicePath, dev.DeviceName, dev.Driver, describeCaps(dev))
				formats, err := v4l2.GetFormats(dev.DevicePath, dev.IsOutput())
				if err != nil {
					continue
				}
				names := make([]string, 0, len(formats))
				for _, f := range formats {
					names = append(names, v4l2.FormatFourCC(f.PixelFormat))
				}
				if len(names) > 0 {
					fmt.Fprintf(out, "\tformats: %s\n", strings.Join(names, ", "))
				}
			}

			if !watch {
				return nil
			}
			return watchDevices(cmd.Context(), out)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include capture-only devices")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and print video devices as they appear and disappear")
	return cmd
}

// watchDevices prints video4linux add and remove events until ctx is done.
func watchDevices(ctx context.Context, out io.Writer) error {
	monitor, err := hotplug.NewMonitor(hotplug.SubsystemVideo4Linux)
	if err != nil {
		return fmt.Errorf("watch devices: %w", err)
	}
	defer monitor.Close()

	events := make(chan hotplug.Event, 8)
	errCh := make(chan error, 1)
	go func() { errCh <- monitor.Run(ctx, events) }()

	fmt.Fprintln(out, "watching for video devices, press Ctrl+C to stop")
	for ev := range events {
		fmt.Fprintln(out, formatHotplug(ev, time.Now()))
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func formatHotplug(ev hotplug.Event, at time.Time) string {
	line := fmt.Sprintf("%s %-6s %s", at.Format(time.TimeOnly), ev.Action, ev.Node())
	if ev.Action != hotplug.ActionAdd {
		return line
	}
	if info, err := v4l2.QueryDevice(ev.Node()); err == nil {
		line += "\t" + info.DeviceName + "\t" + describeCaps(info)
	}
	return line
}

func describeCaps(dev v4l2.DeviceInfo) string {
	var caps []string
	if dev.IsCapture() {
		caps = append(caps, "capture")
	}
	if dev.IsOutput() {
		caps = append(caps, "output")
	}
	if len(caps) == 0 {
		return "-"
	}
	return strings.Join(caps, "+")
}
