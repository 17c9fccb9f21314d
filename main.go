package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"voicedesk/audio"
	"voicedesk/dialogue"
	"voicedesk/log"
	"voicedesk/server"
	"voicedesk/speech"
	"voicedesk/transcriber"
)

var version = "dev"

func main() {
	serveFlag := flag.Bool("serve", false, "Run the HTTP voice service instead of the kiosk loop")
	addrFlag := flag.String("addr", ":8080", "Listen address for -serve")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	langFlag := flag.String("lang", "", "Language code for transcription (default from LANGUAGE env)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	resetFlag := flag.Bool("reset-on-complete", false, "Start a fresh conversation after each completed ticket")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version)
		return
	}

	logDir, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolving log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "opening logs: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	cfg, err := loadConfig()
	if err != nil {
		fatal(err)
	}
	if *langFlag != "" {
		cfg.Language = *langFlag
	}
	if err := cfg.validate(); err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stt := transcriber.NewDeepgram(cfg.DeepgramAPIKey)
	model, err := dialogue.NewGemini(ctx, cfg.GeminiAPIKey, dialogue.DefaultModelName)
	if err != nil {
		fatal(err)
	}
	synth := speech.NewGoogleTTS(cfg.GoogleTTSAPIKey)

	if *serveFlag {
		runServer(ctx, *addrFlag, stt, model, synth)
		return
	}
	runKiosk(ctx, cfg, stt, model, synth, *setupFlag, *deviceFlag, *resetFlag)
}

func runServer(ctx context.Context, addr string, stt transcriber.Transcriber, model dialogue.Model, synth speech.Synthesizer) {
	engine := dialogue.NewEngine(model, dialogue.OpenEnded)
	srv := server.New(stt, engine, synth)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
	if err := srv.Listen(addr); err != nil {
		fatal(err)
	}
}

func runKiosk(ctx context.Context, cfg Config, stt transcriber.Transcriber, model dialogue.Model,
	synth speech.Synthesizer, setup bool, deviceName string, resetOnComplete bool) {
	audioCtx, err := audio.NewContext()
	if err != nil {
		fatal(err)
	}
	defer audioCtx.Close()

	var device *audio.DeviceInfo
	switch {
	case deviceName != "":
		if device, err = findDevice(audioCtx, deviceName); err != nil {
			fatal(err)
		}
	case setup:
		if device, err = selectDevice(audioCtx); err != nil {
			fatal(err)
		}
	}

	player, err := speech.NewPlayer()
	if err != nil {
		fatal(err)
	}
	defer player.Close()

	engine := dialogue.NewEngine(model, dialogue.FixedFlow)
	sup := NewSupervisor(audioCtx, device, stt, engine, synth, player, cfg)
	sup.ResetOnComplete = resetOnComplete

	log.SessionStart(stt.Name(), dialogue.DefaultModelName, cfg.SampleRate)
	fmt.Println("Listening. Speak to report a maintenance issue; Ctrl+C to quit.")

	if err := sup.Run(ctx); err != nil {
		fatal(err)
	}
	log.SessionEnd(sup.Turns())
}

func fatal(err error) {
	log.Errorf("%v", err)
	fmt.Fprintln(os.Stderr, err)
	log.Close()
	os.Exit(1)
}
