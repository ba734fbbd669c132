package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/cbegin/grainsynth-go"
	"github.com/cbegin/grainsynth-go/internal/scene"
	"github.com/cbegin/grainsynth-go/internal/source"
)

// defaultScene orbits one continuous cloud around the listener and fires a
// burst from a second host every two seconds.
const defaultScene = `
listener(0, 0, 0)
local cloud = host(10, 0, 0)
local c = emitter(cloud, {
  density = 4,
  duration = { start = 60, min = 20, max = 250, mod = 120 },
  playhead = { start = 0.2, min = 0, max = 1, noise = 0.15, noise_mode = "periodic", rate = 0.5 },
  transpose = { start = 0, min = -1, max = 1, noise = 0.05 },
  volume = 0.6,
})
local bell = host(0, 0, 4)
local b = emitter(bell, {
  kind = "burst",
  burst = 600,
  density = { start = 1, ["end"] = 6, min = 0.5, max = 8 },
  duration = { start = 120, ["end"] = 30, min = 10, max = 200 },
  transpose = { start = 1, ["end"] = -1, min = -2, max = 2 },
  volume = { start = 0.8, ["end"] = 0.1, min = 0, max = 1 },
  effects = "delay 180,0.35",
})
local next = 0
function tick(t, dt)
  move(cloud, 12 * math.cos(t * 0.4), 0, 12 * math.sin(t * 0.4))
  interact(c, (math.sin(t * 1.3) + 1) / 2)
  if t >= next then
    trigger(b)
    next = next + 2
  end
end
`

func main() {
	var (
		sourcePath = flag.String("source", "", "mono or stereo PCM WAV file (default: built-in tone)")
		scenePath  = flag.String("scene", "", "Lua scene script (default: built-in scene)")
		seconds    = flag.Float64("seconds", 0, "stop after N seconds (0 = until interrupted)")
		backend    = flag.String("backend", "ebiten", "audio backend: ebiten|oto")
		offline    = flag.String("offline", "", "render to this WAV file instead of playing")
		float      = flag.Bool("float", false, "with -offline, write 32-bit float WAV instead of 16-bit PCM")
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		voices     = flag.Int("voices", 8, "voice pool size")
		effects    = flag.String("effects", "", "effect chain for emitters that declare none, e.g. \"flange 5,3; bitcrush 6\"")
		volume     = flag.Float64("volume", 1.0, "master volume scalar")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	be, err := parseBackend(*backend)
	if err != nil {
		log.Fatal(err)
	}
	cfg := grainsynth.DefaultConfig()
	cfg.SampleRate = *sampleRate
	cfg.Voices = *voices
	engine, err := grainsynth.NewEngine(cfg,
		grainsynth.WithBackend(be),
		grainsynth.WithLogger(logger),
		grainsynth.WithMasterGain(*volume),
		grainsynth.WithSeed(time.Now().UnixNano()),
	)
	if err != nil {
		log.Fatal(err)
	}

	tgt := &target{engine: engine, sources: map[string]grainsynth.SourceID{}, effects: *effects}
	if err := loadSources(engine, tgt, *sourcePath, *sampleRate); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var script *scene.Script
	if *scenePath != "" {
		script, err = scene.LoadFile(ctx, *scenePath, tgt)
	} else {
		script, err = scene.Load(ctx, defaultScene, tgt)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer script.Close()

	if *offline != "" {
		if err := renderToFile(ctx, engine, script, *offline, *seconds, *float); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err := play(ctx, engine, script, *seconds); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}

func parseBackend(name string) (grainsynth.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ebiten":
		return grainsynth.BackendEbiten, nil
	case "oto":
		return grainsynth.BackendOto, nil
	default:
		return "", fmt.Errorf("invalid -backend %q (expected ebiten|oto)", name)
	}
}

// loadSources registers the built-in tone and, if given, the WAV at path.
// The WAV becomes the default source and is also reachable by its base name.
func loadSources(engine *grainsynth.Engine, tgt *target, path string, sampleRate int) error {
	tone := source.Tone("tone", sampleRate, 2, 220)
	id, err := engine.LoadSource(tone.Name, tone.Samples, tone.SampleRate)
	if err != nil {
		return err
	}
	tgt.sources["tone"] = id
	tgt.fallback = id
	if strings.TrimSpace(path) == "" {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	id, err = engine.LoadSourceWAV(name, f)
	if err != nil {
		return err
	}
	tgt.sources[name] = id
	tgt.fallback = id
	return nil
}

func renderToFile(ctx context.Context, engine *grainsynth.Engine, script *scene.Script, path string, seconds float64, float bool) error {
	if seconds <= 0 {
		seconds = 10
	}
	interval := grainsynth.DefaultTickInterval
	dt := interval.Seconds()
	samples, err := engine.RenderOffline(ctx, seconds, interval, func(t float64) error {
		return script.Tick(t, dt)
	})
	if err != nil {
		return err
	}
	cfg := engine.Config()
	if float {
		if err := os.WriteFile(path, grainsynth.EncodeWAVFloat32LE(samples, cfg.SampleRate, cfg.Channels), 0o644); err != nil {
			return err
		}
		return report(engine, path, seconds)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := grainsynth.WriteWAV(f, samples, cfg.SampleRate, cfg.Channels, 16); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return report(engine, path, seconds)
}

func report(engine *grainsynth.Engine, path string, seconds float64) error {
	s := engine.Stats()
	fmt.Printf("wrote %s (%.1fs, %d grains, %d stale)\n", path, seconds, s.GrainsPublished, s.StaleDiscarded)
	return nil
}

func play(ctx context.Context, engine *grainsynth.Engine, script *scene.Script, seconds float64) error {
	if seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds*float64(time.Second)))
		defer cancel()
	}
	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	interval := grainsynth.DefaultTickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	began := time.Now()
	last := began
	lastStatus := time.Time{}
	for {
		select {
		case <-ctx.Done():
			if interactive {
				fmt.Println()
			}
			if ctx.Err() == context.DeadlineExceeded {
				return nil
			}
			return ctx.Err()
		case now := <-ticker.C:
			if err := script.Tick(now.Sub(began).Seconds(), now.Sub(last).Seconds()); err != nil {
				return err
			}
			last = now
			if err := engine.Tick(ctx); err != nil {
				return err
			}
			if interactive && now.Sub(lastStatus) >= 250*time.Millisecond {
				lastStatus = now
				printStatus(engine)
			}
		}
	}
}

func printStatus(engine *grainsynth.Engine) {
	s := engine.Stats()
	line := fmt.Sprintf("%6.1fs  voices %d  slots %3d  grains %6d  stale %d  peak %.2f",
		engine.Position().Seconds(), s.ActiveVoices, s.BusySlots, s.GrainsPublished, s.StaleDiscarded, s.Peak)
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 1 && len(line) >= w {
		line = line[:w-1]
	}
	fmt.Printf("\r%s\x1b[K", line)
}
