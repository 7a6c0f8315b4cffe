// Command cacus-cube draws a spinning textured cube with the cacus engine.
package main

import (
	"flag"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/andewx/cacus"
	"github.com/andewx/cacus/display"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/closer"
)

func init() {
	// glfw and the presentation engine want the main thread.
	runtime.LockOSThread()
}

var (
	configPath  = flag.String("config", "", "YAML config file, defaults are used when empty")
	vertPath    = flag.String("vert", "shaders/cube.vert.spv", "compiled vertex shader")
	fragPath    = flag.String("frag", "shaders/cube.frag.spv", "compiled fragment shader")
	texturePath = flag.String("texture", "", "PNG texture, a checkerboard is used when empty")
	logLevel    = flag.String("log", "", "log level override: debug, info, warn, error")
)

func main() {
	flag.Parse()
	// run releases the engine and the window itself, on this locked thread.
	// closer only covers exits triggered by a signal.
	if err := run(); err != nil {
		slog.Error("cacus-cube failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := cacus.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = cacus.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(log)

	vert, err := os.ReadFile(*vertPath)
	if err != nil {
		return errors.Wrap(err, "read vertex shader")
	}
	frag, err := os.ReadFile(*fragPath)
	if err != nil {
		return errors.Wrap(err, "read fragment shader")
	}
	tex, err := loadTexture(*texturePath)
	if err != nil {
		return err
	}

	win, err := display.Open(cfg.AppName, int(cfg.Width), int(cfg.Height))
	if err != nil {
		return err
	}
	closer.Bind(win.Close)
	defer win.Close()

	drv, err := cacus.NewDriverWithProcAddr(win.ProcAddr())
	if err != nil {
		return err
	}
	engine, err := cacus.New(cfg,
		cacus.WithDriver(drv),
		cacus.WithLogger(log),
		cacus.WithWindowExtensions(win.RequiredInstanceExtensions()...))
	if err != nil {
		return err
	}
	// Bound and deferred after the window so it runs first.
	closer.Bind(engine.Shutdown)
	defer engine.Shutdown()

	if err := engine.AttachWindow(win); err != nil {
		return err
	}
	vertices, indices := cube()
	if err := engine.UploadMesh(vertices, indices); err != nil {
		return err
	}
	if err := engine.UploadImage(tex); err != nil {
		return err
	}
	if err := engine.SetupPipeline(vert, frag, cacus.WithFrontFace(vk.FrontFaceCounterClockwise)); err != nil {
		return err
	}
	return loop(engine, win, log)
}

func loop(engine *cacus.Engine, win *display.Window, log *slog.Logger) error {
	start := time.Now()
	view := mgl32.LookAtV(mgl32.Vec3{2, 2, 2}, mgl32.Vec3{}, mgl32.Vec3{0, 0, 1})
	frames := 0
	lastReport := start

	for !win.ShouldClose() {
		win.PollEvents()
		width, height := win.FramebufferSize()
		if width == 0 || height == 0 {
			win.WaitEvents()
			continue
		}

		elapsed := float32(time.Since(start).Seconds())
		model := mgl32.HomogRotate3DZ(elapsed * mgl32.DegToRad(90))
		proj := cacus.PerspectiveVK(45, float32(width)/float32(height), 0.1, 10)
		engine.SetTransform(model, view, proj)

		needsRecreate, err := engine.Draw()
		if err != nil {
			return err
		}
		if needsRecreate {
			if err := engine.RecreateSwapChain(uint32(width), uint32(height)); err != nil {
				return err
			}
			continue
		}

		frames++
		if since := time.Since(lastReport); since >= 5*time.Second {
			log.Debug("frame rate", "fps", float64(frames)/since.Seconds())
			frames, lastReport = 0, time.Now()
		}
	}
	return nil
}

func loadTexture(path string) (image.Image, error) {
	if path == "" {
		return checkerboard(256, 32), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode texture %s", path)
	}
	return img, nil
}

func checkerboard(size, cell int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	light := color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	dark := color.NRGBA{R: 0x30, G: 0x30, B: 0x40, A: 0xff}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetNRGBA(x, y, light)
			} else {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}

// cube returns a unit cube with one quad per face so every face gets its own
// texture coordinates. Faces wind counter clockwise seen from outside.
func cube() ([]cacus.Vertex, cacus.Indices) {
	faces := []struct {
		normal, u, v mgl32.Vec3
		color        mgl32.Vec3
	}{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, -1, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 1}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 1, 0}},
	}
	corners := [4]mgl32.Vec2{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}

	vertices := make([]cacus.Vertex, 0, 24)
	indices := make([]uint16, 0, 36)
	for _, f := range faces {
		base := uint16(len(vertices))
		for _, c := range corners {
			pos := f.normal.Add(f.u.Mul(c.X())).Add(f.v.Mul(c.Y())).Mul(0.5)
			vertices = append(vertices, cacus.Vertex{
				Pos:      pos,
				Color:    f.color,
				TexCoord: mgl32.Vec2{(c.X() + 1) / 2, (1 - c.Y()) / 2},
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, cacus.Indices16(indices)
}
