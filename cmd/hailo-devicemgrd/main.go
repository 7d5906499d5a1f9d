// Command hailo-devicemgrd runs the Hailo Device Manager daemon: it binds
// the coordinator's Unix socket, serves co-hosted clients, and exits
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	devicemgr "github.com/gregm123456/hailo-device-manager"
	"github.com/gregm123456/hailo-device-manager/internal/logging"
)

func main() {
	var (
		verbose  = flag.Bool("v", false, "Verbose (debug-level) logging")
		logJSON  = flag.Bool("log-json", false, "Emit structured JSON logs")
		socket   = flag.String("socket", "", "Override HAILO_DEVICE_SOCKET")
		httpBind = flag.String("http", "", "Override HAILO_DEVICE_HTTP_BIND (\"off\" disables)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	if *logJSON {
		logConfig.Format = "json"
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg, err := devicemgr.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *socket != "" {
		cfg.SocketPath = *socket
	}
	if *httpBind != "" {
		cfg.HTTPBind = *httpBind
	}

	logger.Info("starting device manager",
		"socket", cfg.SocketPath,
		"http_bind", cfg.HTTPBind,
		"queue_capacity", cfg.QueueCapacity,
		"max_message_bytes", cfg.MaxMessageBytes)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon, err := devicemgr.Start(cfg, &devicemgr.Options{
		Context: ctx,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to start device manager", "error", err)
		os.Exit(1)
	}

	logger.Info("device manager ready", "socket", daemon.SocketPath())
	if cfg.HTTPEnabled() {
		fmt.Printf("Status endpoint: http://%s/v1/device/status\n", cfg.HTTPBind)
	}
	fmt.Printf("Socket: %s\n", daemon.SocketPath())
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())
	fmt.Println("Press Ctrl+C to stop...")

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n=== END ===\n\n", buf[:n])

			filename := fmt.Sprintf("hailo-devicemgrd-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump, pid %d\n\n", os.Getpid())
				f.Write(buf[:n])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Info("stack trace written to file", "file", filename)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace+2*time.Second)
	defer shutdownCancel()

	if err := daemon.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("device manager stopped")
}
