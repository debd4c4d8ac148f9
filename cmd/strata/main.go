package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"strata/internal/config"
	"strata/internal/dispatch"
	"strata/internal/lspbridge"
	"strata/internal/notifier"
	"strata/internal/transport"
)

// Version is set during the build process using ldflags.
var Version = "(dev) v0.0.0"

func main() {
	versionFlag := flag.Bool("version", false, "Print the version of the program")
	logfileFlag := flag.String("logfile", "", "Path to log file")
	sourceRootFlag := flag.String("source-root", ".", "Root directory resolving relative file paths")
	configFlag := flag.String("config", "", "Path to a JSON server configuration file")
	socketFlag := flag.String("socket", "", "Address to listen on for the plain request/response protocol, e.g. 127.0.0.1:7777")
	notifierAddrFlag := flag.String("notifier-addr", "", "Address to listen on for external file-notifier WebSocket connections, e.g. 127.0.0.1:7778")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("strata type-analysis server version %s\n", Version)
		return
	}

	runtime.GOMAXPROCS(4)

	if *logfileFlag != "" {
		logFile, err := os.OpenFile(*logfileFlag, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
		log.SetFlags(log.Ldate | log.Ltime | log.Llongfile)
		log.Println("Starting strata type-analysis server...")
	} else {
		log.SetOutput(io.Discard)
	}
	commonlog.Configure(2, nil) // Logger used by glsp

	cfg := loadConfig(*configFlag, *sourceRootFlag)
	state := dispatch.New(cfg)
	state.Scheduler.Start()

	if *socketFlag != "" {
		srv, err := transport.Listen(*socketFlag, state)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", *socketFlag, err)
		}
		go func() {
			if err := srv.Serve(context.Background()); err != nil {
				log.Printf("transport: serve ended: %v", err)
			}
		}()
	}

	if *notifierAddrFlag != "" {
		notifySrv := notifier.New(state)
		boundAddr, err := notifySrv.Listen(*notifierAddrFlag)
		if err != nil {
			log.Fatalf("Failed to listen on %s: %v", *notifierAddrFlag, err)
		}
		state.Notify = notifySrv.Broadcast
		log.Printf("notifier: listening on %s", boundAddr)
	}

	server := lspbridge.NewServer(state)
	if err := server.RunStdio(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func loadConfig(path, sourceRoot string) config.Config {
	var cfg config.Config
	var err error
	if path != "" {
		f, openErr := os.Open(path)
		if openErr != nil {
			log.Fatalf("Failed to open config file: %v", openErr)
		}
		defer f.Close()
		cfg, err = config.LoadFromJSON(f)
	} else {
		cfg, err = config.Load(map[string]any{})
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if sourceRoot != "" {
		cfg.SourceRoot = sourceRoot
	}
	return cfg
}
