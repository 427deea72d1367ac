package runtime

import (
	"bytes"
	"context"
	"fmt"
	"go/constant"
	"go/token"
	"log/slog"
	"reflect"
	"regexp"
	"sync"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/sceneflow/sceneflow/internal/app/dto"
	"github.com/sceneflow/sceneflow/pkg/kit"
)

// kitPath is the import path scene code sees for package kit.
const kitPath = "github.com/sceneflow/sceneflow/pkg/kit/kit"

// DefaultPackages are the standard library packages scene code may use.
var DefaultPackages = []string{"fmt", "math", "strconv", "strings", "time"}

// DefaultBuildTimeout bounds a single scene construction.
const DefaultBuildTimeout = 5 * time.Second

var (
	createFuncPattern = regexp.MustCompile(`(?m)^\s*func\s+(CreateScene|createScene)\s*\(\s*\)`)
	sceneVarPattern   = regexp.MustCompile(`(?m)^\s*(?:var\s+)?(Scene|scene)\s*(?:\*kit\.Scene\s*)?(?::=|=)`)
)

// Sandbox evaluates scene source with yaegi. Each build gets a fresh
// interpreter holding only the allowed packages and package kit, whose
// NavigateToScene and TriggerFlow are bound to the caller's kit.Flow.
type Sandbox struct {
	stdlib  interp.Exports
	timeout time.Duration
	logger  *slog.Logger
}

// SandboxOption configures a Sandbox.
type SandboxOption func(*Sandbox)

// WithPackages replaces the standard library allowlist.
func WithPackages(pkgs ...string) SandboxOption {
	return func(sb *Sandbox) { sb.stdlib = allowed(pkgs) }
}

// WithBuildTimeout bounds scene construction; non-positive keeps the default.
func WithBuildTimeout(d time.Duration) SandboxOption {
	return func(sb *Sandbox) {
		if d > 0 {
			sb.timeout = d
		}
	}
}

// WithSandboxLogger receives scene output and evaluation warnings.
func WithSandboxLogger(l *slog.Logger) SandboxOption {
	return func(sb *Sandbox) { sb.logger = l }
}

// NewSandbox returns a sandbox allowing DefaultPackages.
func NewSandbox(opts ...SandboxOption) *Sandbox {
	sb := &Sandbox{
		stdlib:  allowed(DefaultPackages),
		timeout: DefaultBuildTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(sb)
	}
	return sb
}

func allowed(pkgs []string) interp.Exports {
	out := make(interp.Exports, len(pkgs))
	for _, p := range pkgs {
		key := p + "/" + lastElem(p)
		if syms, ok := stdlib.Symbols[key]; ok {
			out[key] = syms
		}
	}
	return out
}

func lastElem(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func kitSymbols(f kit.Flow) interp.Exports {
	return interp.Exports{
		kitPath: {
			"Scene":  reflect.ValueOf((*kit.Scene)(nil)),
			"Camera": reflect.ValueOf((*kit.Camera)(nil)),
			"Object": reflect.ValueOf((*kit.Object)(nil)),
			"Vec3":   reflect.ValueOf((*kit.Vec3)(nil)),

			"NewScene":  reflect.ValueOf(kit.NewScene),
			"NewCamera": reflect.ValueOf(kit.NewCamera),
			"V":         reflect.ValueOf(kit.V),
			"Mesh":      reflect.ValueOf(kit.Mesh),
			"Model":     reflect.ValueOf(kit.Model),

			"ModeReplace": reflect.ValueOf(constant.MakeFromLiteral(`"replace"`, token.STRING, 0)),
			"ModeOverlay": reflect.ValueOf(constant.MakeFromLiteral(`"overlay"`, token.STRING, 0)),

			"NavigateToScene": reflect.ValueOf(f.NavigateToScene),
			"TriggerFlow":     reflect.ValueOf(f.TriggerFlow),
		},
	}
}

// Build runs source and returns the scene it produces. A source defining
// CreateScene (or createScene) has it called; one assigning Scene (or
// scene) has that value used; anything else yields an empty scene named
// sceneName. Failures wrap dto.ErrSceneExecution.
func (sb *Sandbox) Build(ctx context.Context, sceneName, source string, f kit.Flow) (scene *kit.Scene, err error) {
	ctx, cancel := context.WithTimeout(ctx, sb.timeout)
	defer cancel()

	out := &logWriter{logger: sb.logger.With("scene", sceneName)}
	in := interp.New(interp.Options{Stdout: out, Stderr: out})
	if err := in.Use(sb.stdlib); err != nil {
		return nil, fmt.Errorf("%w: load packages: %w", dto.ErrSceneExecution, err)
	}
	if err := in.Use(kitSymbols(f)); err != nil {
		return nil, fmt.Errorf("%w: load kit: %w", dto.ErrSceneExecution, err)
	}
	in.ImportUsed()

	defer func() {
		if r := recover(); r != nil {
			scene, err = nil, fmt.Errorf("%w: %s: panic: %v", dto.ErrSceneExecution, sceneName, r)
		}
		out.Flush()
	}()

	if _, err := in.EvalWithContext(ctx, source); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dto.ErrSceneExecution, sceneName, err)
	}

	var expr string
	if m := createFuncPattern.FindStringSubmatch(source); m != nil {
		expr = m[1] + "()"
	} else if m := sceneVarPattern.FindStringSubmatch(source); m != nil {
		expr = m[1]
	}
	if expr == "" {
		return kit.NewScene(sceneName), nil
	}

	v, err := in.EvalWithContext(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", dto.ErrSceneExecution, sceneName, err)
	}
	if v.IsValid() && v.CanInterface() {
		if s, ok := v.Interface().(*kit.Scene); ok && s != nil {
			if s.Name == "" {
				s.Name = sceneName
			}
			return s, nil
		}
	}
	sb.logger.Warn("scene code produced no scene", "scene", sceneName, "expr", expr)
	return kit.NewScene(sceneName), nil
}

// logWriter turns interpreter output into log lines.
type logWriter struct {
	mu     sync.Mutex
	logger *slog.Logger
	buf    bytes.Buffer
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.logger.Info("scene output", "line", line[:len(line)-1])
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.logger.Info("scene output", "line", w.buf.String())
		w.buf.Reset()
	}
}
