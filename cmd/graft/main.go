// Command graft applies injection and directive rules to a single document
// read from a file or stdin and writes the result to stdout.
//
//	graft inject -target body -fragment '<p>x</p>' [file]
//	graft substitute -set key=value ... [file]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"graft/internal/directive"
	"graft/internal/dom"
	"graft/internal/inject"
	"graft/internal/logging"
	"graft/internal/markup"
)

// values collects repeated -set key=value flags.
type values map[string]string

func (v values) String() string {
	pairs := make([]string, 0, len(v))
	for key, value := range v {
		pairs = append(pairs, key+"="+value)
	}
	return strings.Join(pairs, ",")
}

func (v values) Set(pair string) error {
	key, value, ok := strings.Cut(pair, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", pair)
	}
	v[key] = value
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "inject":
		err = runInject(args[1:], stdin, stdout, stderr)
	case "substitute":
		err = runSubstitute(args[1:], stdin, stdout, stderr)
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "graft: unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		slog.Error("Command failed", "command", args[0], "error", err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: graft inject -target NAME -fragment HTML [-each] [-context NAME] [file]")
	fmt.Fprintln(w, "       graft substitute [-set key=value ...] [-open S -close S] [-keys] [file]")
}

func runInject(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("inject", flag.ContinueOnError)
	fs.SetOutput(stderr)
	target := fs.String("target", "body", "Local name of the element to append to")
	fragment := fs.String("fragment", "", "HTML fragment to append")
	fragContext := fs.String("context", markup.DefaultFragmentContext, "Element the fragment is parsed in")
	each := fs.Bool("each", false, "Append a copy of the fragment to every matching element")
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Setup(stderr, *logLevel)

	src, err := readInput(fs.Args(), stdin)
	if err != nil {
		return err
	}

	tree, err := markup.ParseDocumentString(src)
	if err != nil {
		return err
	}
	for _, msg := range tree.Errors {
		slog.Debug("Parse error", "error", msg)
	}

	newFragment := func() (*dom.Node, error) {
		return markup.ParseFragment(*fragment, *fragContext)
	}

	var matched int
	if *each {
		matched, err = inject.Each(tree, *target, newFragment)
	} else {
		var frag *dom.Node
		if frag, err = newFragment(); err == nil {
			matched, err = inject.IntoTree(tree, *target, frag)
		}
	}
	if err != nil {
		return err
	}
	if matched == 0 {
		slog.Warn("No element matched", "target", *target)
	}
	slog.Info("Injected fragment", "target", *target, "matches", matched)

	return markup.Render(stdout, tree)
}

func runSubstitute(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("substitute", flag.ContinueOnError)
	fs.SetOutput(stderr)
	set := values{}
	fs.Var(set, "set", "Directive value as key=value (repeatable)")
	open := fs.String("open", directive.DefaultOpen, "Directive opening marker")
	closing := fs.String("close", directive.DefaultClose, "Directive closing marker")
	listKeys := fs.Bool("keys", false, "List the directive keys instead of substituting")
	logLevel := fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logging.Setup(stderr, *logLevel)

	if *open == "" || *closing == "" {
		return fmt.Errorf("directive markers must not be empty")
	}
	syntax := directive.Syntax{Open: *open, Close: *closing}

	src, err := readInput(fs.Args(), stdin)
	if err != nil {
		return err
	}

	if *listKeys {
		for _, key := range syntax.Keys(src) {
			if _, err := fmt.Fprintln(stdout, key); err != nil {
				return err
			}
		}
		return nil
	}

	for _, key := range syntax.Keys(src) {
		if _, ok := set[key]; !ok {
			slog.Warn("Directive has no value, substituting empty string", "key", key)
		}
	}

	_, err = io.WriteString(stdout, syntax.Substitute(src, set))
	return err
}

func readInput(args []string, stdin io.Reader) (string, error) {
	switch len(args) {
	case 0:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	case 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("expected at most one input file, got %d", len(args))
	}
}
