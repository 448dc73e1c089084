package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/jit-runtime/dispatch"
	"github.com/wippyai/jit-runtime/pipeline"
	"github.com/wippyai/jit-runtime/pipeline/wasmgen"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

func main() {
	var (
		callName    = flag.String("call", "", "Function to call")
		argStr      = flag.String("args", "", "Comma-separated arguments (42 -> i8, 4.2 -> f8, true -> bool)")
		list        = flag.Bool("list", false, "List registered functions and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Log specialization compiles")
	)
	flag.Parse()

	if !*list && *callName == "" && !*interactive {
		fmt.Fprintln(os.Stderr, "Usage: jitrun -call <name> -args 1,2")
		fmt.Fprintln(os.Stderr, "       jitrun -list")
		fmt.Fprintln(os.Stderr, "       jitrun -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*callName, *argStr, *list, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(callName, argStr string, listOnly, verbose bool) error {
	ctx := context.Background()

	var logger *zap.Logger
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
	}

	rt, demos, err := newDemoRuntime(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if listOnly {
		fmt.Println("Registered functions:")
		for _, d := range demos {
			fmt.Printf("  %s\n", d.describe())
		}
		return nil
	}

	args, err := parseArgs(argStr)
	if err != nil {
		return err
	}

	fmt.Printf("Calling %s(%s)...\n", callName, argStr)
	result, err := rt.Invoke(ctx, callName, args...)
	if err != nil {
		return fmt.Errorf("call %s: %w", callName, err)
	}
	fmt.Printf("Result: %v\n", result)

	if c, err := rt.Lookup(callName); err == nil {
		fmt.Printf("Specializations: %s\n", strings.Join(c.Specializations(), ", "))
	}
	return nil
}

// demo is one pre-registered callable with its display contract. The
// payloads stand in for the external code generator.
type demo struct {
	callable *dispatch.Callable
	name     string
	contract string
}

func (d *demo) describe() string {
	return d.name + " " + d.contract
}

// newDemoRuntime builds a runtime with a few specializable functions:
// generic arithmetic that compiles an integer or a float implementation
// per call-site types, and one eagerly compiled fixed-signature function.
func newDemoRuntime(ctx context.Context, logger *zap.Logger) (*dispatch.Runtime, []*demo, error) {
	adapter, err := pipeline.NewWazeroAdapter(ctx)
	if err != nil {
		return nil, nil, err
	}

	rt, err := dispatch.New(dispatch.Config{Adapter: adapter, Logger: logger})
	if err != nil {
		adapter.Close(ctx)
		return nil, nil, err
	}

	template, err := signature.Parse("T(T, T)")
	if err != nil {
		return nil, nil, err
	}

	binop := func(name string, i64op, f64op byte) *pipeline.Declaration {
		return &pipeline.Declaration{
			Name:     name,
			ArgNames: []string{"a", "b"},
			Lower: func(sig *signature.Signature) ([]byte, error) {
				if isFloat(sig) {
					return wasmgen.Emit(wasmgen.BinOp(name, wasmgen.F64, f64op)), nil
				}
				return wasmgen.Emit(wasmgen.BinOp(name, wasmgen.I64, i64op)), nil
			},
		}
	}

	var demos []*demo
	registerTemplate := func(decl *pipeline.Declaration) error {
		c, err := rt.Register(ctx, decl, dispatch.CallableOptions{Template: template})
		if err != nil {
			return err
		}
		demos = append(demos, &demo{callable: c, name: decl.Name, contract: "T(T, T)"})
		return nil
	}

	for _, decl := range []*pipeline.Declaration{
		binop("add", wasmgen.OpI64Add, wasmgen.OpF64Add),
		binop("sub", wasmgen.OpI64Sub, wasmgen.OpF64Sub),
		binop("mul", wasmgen.OpI64Mul, wasmgen.OpF64Mul),
	} {
		if err := registerTemplate(decl); err != nil {
			rt.Close(ctx)
			return nil, nil, err
		}
	}

	// square is fixed to f8(f8) and compiled at registration.
	squareSig, err := signature.Parse("square f8(f8)")
	if err != nil {
		return nil, nil, err
	}
	square := &pipeline.Declaration{
		Name:     "square",
		ArgNames: []string{"x"},
		Code: wasmgen.Emit(wasmgen.Func{
			Name:    "square",
			Params:  []wasmgen.ValType{wasmgen.F64},
			Results: []wasmgen.ValType{wasmgen.F64},
			Body: []byte{
				wasmgen.OpLocalGet, 0,
				wasmgen.OpLocalGet, 0,
				wasmgen.OpF64Mul,
				wasmgen.OpEnd,
			},
		}),
	}
	c, err := rt.Register(ctx, square, dispatch.CallableOptions{Signature: squareSig})
	if err != nil {
		rt.Close(ctx)
		return nil, nil, err
	}
	demos = append(demos, &demo{callable: c, name: "square", contract: "f8(f8)"})

	return rt, demos, nil
}

func isFloat(sig *signature.Signature) bool {
	n, ok := sig.Return.(types.Numeric)
	return ok && n.IsFloat()
}

// parseArgs maps comma-separated literals to typed host values: integer
// literals become i8, decimal literals f8, true/false bool.
func parseArgs(argStr string) ([]any, error) {
	if argStr == "" {
		return nil, nil
	}
	parts := strings.Split(argStr, ",")
	args := make([]any, len(parts))
	for i, p := range parts {
		v, err := parseArg(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func parseArg(s string) (any, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	return nil, fmt.Errorf("cannot parse argument %q", s)
}
