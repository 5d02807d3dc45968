// camwatch - follow a camserve frame stream and report the frame rate
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/teslashibe/go-webcam/pkg/protocol"
	"github.com/teslashibe/go-webcam/pkg/video"
)

func main() {
	serverURL := flag.String("url", "http://localhost:3030", "camserve base URL")
	saveDir := flag.String("save", "", "Directory to save every frame to")
	events := flag.Bool("events", false, "Also print /ws/events messages")
	flag.Parse()

	fmt.Println("📹 camserve stream watcher")
	fmt.Println("==========================")
	fmt.Printf("Server: %s\n\n", *serverURL)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := video.NewClient(*serverURL)
	if err := client.Connect(ctx); err != nil {
		fmt.Printf("❌ Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	if rtt, err := client.Ping(pingCtx); err != nil {
		fmt.Printf("⚠️  ping: %v\n", err)
	} else {
		fmt.Printf("🏓 Event channel round trip: %v\n", rtt.Round(time.Microsecond))
	}
	pingCancel()

	if *saveDir != "" {
		if err := os.MkdirAll(*saveDir, 0o755); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}

	if *events {
		go func() {
			err := client.Events(ctx, func(m *protocol.Message) {
				switch m.Type {
				case protocol.TypeCaptureError:
					if ce, err := m.GetCaptureErrorData(); err == nil {
						fmt.Printf("\n⚠️  capture error [%s]: %s\n", ce.Stage, ce.Error)
					}
				case protocol.TypeMotion:
					if md, err := m.GetMotionData(); err == nil {
						fmt.Printf("\n👀 motion probe on %s: present=%v (%dx%d)\n",
							md.FrameID, md.Present, md.Width, md.Height)
					}
				case protocol.TypeStatus:
					if st, err := m.GetStatusData(); err == nil {
						fmt.Printf("\n📊 %s: %d frames, %d errors, device open=%v\n",
							st.Mode, st.Frames, st.Errors, st.DeviceOpen)
					}
				}
			})
			if err != nil {
				fmt.Printf("\n⚠️  event stream: %v\n", err)
			}
		}()
	}

	fmt.Println("🎬 Measuring frame rate (Ctrl+C to stop)...")

	startTime := time.Now()
	lastReport := time.Now()
	lastSize := 0

	for {
		frame, err := client.WaitForFrame(ctx)
		if err != nil {
			break
		}
		lastSize = len(frame)
		n := client.FrameCount()

		if n == 1 && *saveDir == "" {
			os.WriteFile("test_frame.jpg", frame, 0o644)
			fmt.Printf("💾 First frame saved: test_frame.jpg (%d bytes)\n", len(frame))
		}
		if *saveDir != "" {
			name := filepath.Join(*saveDir, fmt.Sprintf("frame_%06d.jpg", n))
			if err := os.WriteFile(name, frame, 0o644); err != nil {
				fmt.Printf("\n⚠️  save %s: %v\n", name, err)
			}
		}

		if time.Since(lastReport) >= time.Second {
			elapsed := time.Since(startTime).Seconds()
			fmt.Printf("\r📷 Frames: %d | FPS: %.2f | Last size: %d bytes    ",
				n, float64(n)/elapsed, lastSize)
			lastReport = time.Now()
		}
	}

	elapsed := time.Since(startTime).Seconds()
	fmt.Printf("\n\n📊 Final: %d frames in %.1fs = %.2f fps\n",
		client.FrameCount(), elapsed, float64(client.FrameCount())/elapsed)
}
